package domain

// Bucket is one of the mutually exclusive reconciliation outcomes for billed money.
type Bucket string

const (
	BucketSuccess        Bucket = "success"
	BucketFailedDebtor   Bucket = "failed_debtor"
	BucketFailedCustomer Bucket = "failed_customer"
	BucketNoIdentifier   Bucket = "no_identifier"
)

// RunStatus represents the lifecycle of a reconciliation run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// MergePolicy decides which line items of a category are folded together.
type MergePolicy string

const (
	// MergeByItemName merges lines whose normalized item names match.
	MergeByItemName MergePolicy = "item_name"
	// MergeByItemNameAndPrice additionally requires identical unit prices.
	MergeByItemNameAndPrice MergePolicy = "item_name_and_price"
)

// ValidMergePolicies maps accepted configuration values to MergePolicy.
var ValidMergePolicies = map[string]MergePolicy{
	string(MergeByItemName):         MergeByItemName,
	string(MergeByItemNameAndPrice): MergeByItemNameAndPrice,
}

// CategoryName is a vendor billing category (product line).
type CategoryName string

const (
	CategoryExclaimer         CategoryName = "Exclaimer"
	CategorySPLA              CategoryName = "SPLA"
	CategoryMicrosoftCSP      CategoryName = "Microsoft CSP (NCE)"
	CategoryKeepit            CategoryName = "Keepit"
	CategoryAcronis           CategoryName = "Acronis"
	CategoryDropbox           CategoryName = "Dropbox"
	CategoryImpossibleCloud   CategoryName = "Impossible Cloud"
	CategoryMicrosoftAzure    CategoryName = "Microsoft NCE (Azure)"
	CategoryBackup            CategoryName = "Backup"
	CategoryMessagingSecurity CategoryName = "Messaging Security"
)

// RunTrigger records what started a reconciliation run.
type RunTrigger string

const (
	RunTriggerAPI RunTrigger = "api"
	RunTriggerCLI RunTrigger = "cli"
)
