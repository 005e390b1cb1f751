package recon_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billrecon/internal/domain"
	"billrecon/internal/recon"
)

func invoiceWithLines(id string, amounts ...float64) *domain.CustomerInvoice {
	inv := &domain.CustomerInvoice{Key: id, Customer: &domain.Customer{ID: id, Name: "Name " + id}}
	cat := inv.Category("Backup")
	for _, a := range amounts {
		cat.Lines = append(cat.Lines, &domain.LineItem{ItemName: "x", Quantity: 1, UnitPrice: a, Amount: a})
	}
	return inv
}

func TestLedger_PartitionBalances(t *testing.T) {
	l := recon.NewLedger()
	l.AddProcessed("Backup", 100, 100)
	l.AddProcessed("Backup", 30, 30)
	l.AddProcessed("Backup", 7.5, 7.5)
	l.AddNoIdentifier("Exotic", &domain.LineItem{ItemName: "y", Amount: 12.25, Quantity: 1}, 12.25, "", "no id")

	l.RecordSuccess(invoiceWithLines("c1", 60, 40), "A1", "1001")
	l.RecordDebtorFailure(invoiceWithLines("c2", 30), "no debtor")

	failed := &domain.CustomerInvoiceError{RawID: "c3", Reason: "no match"}
	failed.Category("Backup").Lines = []*domain.LineItem{{Amount: 7.5}}
	l.RecordCustomerFailures([]*domain.CustomerInvoiceError{failed})

	snap := l.Snapshot()
	assert.Equal(t, 137.5, snap.TotalProcessed)
	assert.Equal(t, 100.0, snap.TotalSuccess)
	assert.Equal(t, 30.0, snap.TotalFailedDebtor)
	assert.Equal(t, 7.5, snap.TotalFailedCustomer)
	assert.Equal(t, 12.25, snap.TotalNoIdentifier)
	assert.InDelta(t, 0, snap.Discrepancy, 1e-9)
	assert.Zero(t, snap.Adjustment)
	assert.Empty(t, snap.Adjustments)
	assert.InDelta(t, snap.GrandTotal(), snap.BucketTotal(), 1e-6)
	assert.True(t, l.Balanced(1e-6))

	require.Len(t, snap.SuccessRows, 1)
	assert.Equal(t, "A1", snap.SuccessRows[0].Account)
	assert.Equal(t, "1001", snap.SuccessRows[0].OrderNumber)
	assert.Equal(t, 2, snap.SuccessRows[0].LineCount)
	require.Len(t, snap.FailedDebtorRows, 1)
	assert.Equal(t, "no debtor", snap.FailedDebtorRows[0].Reason)
	require.Len(t, snap.FailedCustomerRows, 1)
	assert.Equal(t, "c3", snap.FailedCustomerRows[0].CustomerID)
	require.Len(t, snap.NoIdentifierRows, 1)
	assert.Equal(t, "Exotic", snap.NoIdentifierRows[0].Category)
	assert.Equal(t, "1", snap.NoIdentifierRows[0].Quantity)
}

func TestLedger_UnbalancedIsReported(t *testing.T) {
	l := recon.NewLedger()
	l.AddProcessed("Backup", 10, 10)

	assert.False(t, l.Balanced(1e-6))
	assert.Equal(t, 10.0, l.Snapshot().Discrepancy)
}

func TestLedger_MergePartials(t *testing.T) {
	total := recon.NewLedger()
	a := recon.NewLedger()
	b := recon.NewLedger()

	a.AddCategory("Backup")
	a.AddProcessed("Backup", 5, 5)
	b.AddCategory("Backup")
	b.AddCategory("Dropbox")
	b.AddProcessed("Dropbox", 7, 9)
	b.AddNoIdentifier("Dropbox", &domain.LineItem{Amount: 3}, 3, "", "n")

	total.Merge(a)
	total.Merge(b)
	total.Merge(total)

	snap := total.Snapshot()
	assert.Equal(t, 12.0, snap.TotalProcessed)
	assert.Equal(t, 3.0, snap.TotalNoIdentifier)
	assert.Equal(t, 2.0, snap.Adjustment)
	assert.Equal(t, map[string]float64{"Dropbox": 2}, snap.Adjustments)
	assert.Equal(t, []string{"Backup", "Dropbox"}, snap.Categories)
	assert.Len(t, snap.NoIdentifierRows, 1)
}

func TestLedger_SnapshotIsACopy(t *testing.T) {
	l := recon.NewLedger()
	l.AddNoIdentifier("Exotic", &domain.LineItem{Amount: 1}, 1, "", "n")

	snap := l.Snapshot()
	l.AddNoIdentifier("Exotic", &domain.LineItem{Amount: 2}, 2, "", "n")

	assert.Len(t, snap.NoIdentifierRows, 1)
	assert.Equal(t, 1.0, snap.TotalNoIdentifier)
}

func TestLedger_NoIdentifierUsesBilledAmount(t *testing.T) {
	l := recon.NewLedger()
	l.AddNoIdentifier("Impossible Cloud", &domain.LineItem{ItemName: "cloud service", Amount: 0, Quantity: 0}, 25, "", "n")

	snap := l.Snapshot()
	assert.Equal(t, 25.0, snap.TotalNoIdentifier)
	require.Len(t, snap.NoIdentifierRows, 1)
	assert.Equal(t, 25.0, snap.NoIdentifierRows[0].Amount)
}

func TestLedger_AdjustmentExplainsDiscrepancy(t *testing.T) {
	l := recon.NewLedger()
	l.AddProcessed("Impossible Cloud", 90, 100)
	l.RecordSuccess(invoiceWithLines("c1", 100), "A1", "1")

	snap := l.Snapshot()
	assert.Equal(t, 90.0, snap.TotalProcessed)
	assert.Equal(t, -10.0, snap.Discrepancy)
	assert.Equal(t, 10.0, snap.Adjustment)
	assert.Equal(t, map[string]float64{"Impossible Cloud": 10}, snap.Adjustments)
	assert.InDelta(t, 0, snap.Unexplained(), 1e-9)
	assert.True(t, l.Balanced(1e-6))
}

func TestLedger_CrossMergeDoesNotDeadlock(t *testing.T) {
	a := recon.NewLedger()
	b := recon.NewLedger()
	a.AddProcessed("Backup", 1, 1)
	b.AddProcessed("Backup", 2, 2)

	done := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		i := i
		go func() {
			for j := 0; j < 100; j++ {
				if i == 0 {
					a.Merge(b)
				} else {
					b.Merge(a)
				}
			}
			done <- struct{}{}
		}()
	}

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("concurrent merges did not finish")
		}
	}
}
