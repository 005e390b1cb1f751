package recon_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"billrecon/internal/domain"
	"billrecon/internal/port"
	"billrecon/internal/recon"
	"billrecon/mocks"
)

func newTestEngine(debtors *mocks.MockDebtorSource, orders *mocks.MockOrderGateway, policy domain.MergePolicy) *recon.Engine {
	return recon.NewEngine(recon.Options{
		MergePolicy:      policy,
		Workers:          4,
		ExpectedCurrency: "DKK",
		InvoiceDate:      "2024-02-01",
	}, debtors, orders, zap.NewNop())
}

func sumAmounts(categories []domain.BillingCategory) float64 {
	total := 0.0
	for _, c := range categories {
		for _, r := range c.Rows {
			total += r.Float("Amount")
		}
	}
	return total
}

func TestEngine_ScenarioA_SingleCustomerSuccess(t *testing.T) {
	debtors := new(mocks.MockDebtorSource)
	orders := new(mocks.MockOrderGateway)

	debtors.On("LoadDebtors", mock.Anything).Return([]domain.Record{
		{"Account": "A1", "VatNumber": "12.345.678"},
	}, nil)
	orders.On("FindOrders", mock.Anything, "A1").Return([]domain.Record{}, nil)
	orders.On("CreateOrder", mock.Anything, mock.MatchedBy(func(d *domain.Debtor) bool {
		return d.Account() == "A1"
	}), port.OrderMetadata{YourRef: recon.DefaultOrderRef, InvoiceDate: "2024-02-01"}).Return("1001", nil)
	orders.On("SubmitLines", mock.Anything, "1001", []port.OrderLine{
		{OrderNumber: "1001", Item: recon.DefaultOrderItem, Text: "Backup Service", Qty: 2, Total: 100},
	}).Return(nil)

	customers := []domain.Customer{{ID: "c1", VatID: "12345678", CountryCode: "DK"}}
	categories := []domain.BillingCategory{{
		Name: "Backup",
		Rows: []domain.Record{{"CustomerId": "c1", "Amount": 100.0, "Quantity": 2.0, "ItemName": "Backup Service"}},
	}}

	snap, err := newTestEngine(debtors, orders, domain.MergeByItemNameAndPrice).Run(context.Background(), customers, categories)
	require.NoError(t, err)

	assert.Equal(t, 100.0, snap.TotalSuccess)
	assert.Equal(t, 100.0, snap.TotalProcessed)
	assert.Zero(t, snap.TotalFailedDebtor)
	assert.Zero(t, snap.TotalFailedCustomer)
	require.Len(t, snap.SuccessRows, 1)
	assert.Equal(t, "A1", snap.SuccessRows[0].Account)
	assert.Equal(t, "1001", snap.SuccessRows[0].OrderNumber)
	orders.AssertExpectations(t)
	debtors.AssertExpectations(t)
}

func TestEngine_ScenarioB_RowsMergeIntoOneLine(t *testing.T) {
	for _, policy := range []domain.MergePolicy{domain.MergeByItemName, domain.MergeByItemNameAndPrice} {
		t.Run(string(policy), func(t *testing.T) {
			debtors := new(mocks.MockDebtorSource)
			orders := new(mocks.MockOrderGateway)

			debtors.On("LoadDebtors", mock.Anything).Return([]domain.Record{{"Account": "A1", "VatNumber": "12345678"}}, nil)
			orders.On("FindOrders", mock.Anything, "A1").Return([]domain.Record{{"OrderNumber": "555"}}, nil)
			orders.On("SubmitLines", mock.Anything, "555", []port.OrderLine{
				{OrderNumber: "555", Item: recon.DefaultOrderItem, Text: "Backup Service", Qty: 3, Total: 150},
			}).Return(nil)

			customers := []domain.Customer{{ID: "c1", VatID: "12345678", CountryCode: "DK"}}
			categories := []domain.BillingCategory{{
				Name: "Backup",
				Rows: []domain.Record{
					{"CustomerId": "c1", "Amount": 100.0, "Quantity": 2.0, "ItemName": "Backup Service"},
					{"CustomerId": "c1", "Amount": 50.0, "Quantity": 1.0, "ItemName": "Backup Service"},
				},
			}}

			snap, err := newTestEngine(debtors, orders, policy).Run(context.Background(), customers, categories)
			require.NoError(t, err)

			assert.Equal(t, 150.0, snap.TotalSuccess)
			require.Len(t, snap.SuccessRows, 1)
			assert.Equal(t, 1, snap.SuccessRows[0].LineCount)
			orders.AssertExpectations(t)
			orders.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestEngine_ScenarioC_AmbiguousCustomer(t *testing.T) {
	debtors := new(mocks.MockDebtorSource)
	orders := new(mocks.MockOrderGateway)
	debtors.On("LoadDebtors", mock.Anything).Return([]domain.Record{}, nil)

	customers := []domain.Customer{{ID: "c2", Name: "Lower"}, {ID: "C2", Name: "Upper"}}
	categories := []domain.BillingCategory{{
		Name: "Backup",
		Rows: []domain.Record{{"CustomerId": "C2", "CustomerName": "Dup Co", "Amount": 40.0, "Quantity": 1.0, "ItemName": "Backup Service"}},
	}}

	snap, err := newTestEngine(debtors, orders, domain.MergeByItemNameAndPrice).Run(context.Background(), customers, categories)
	require.NoError(t, err)

	assert.Zero(t, snap.TotalSuccess)
	assert.Zero(t, snap.TotalFailedDebtor)
	assert.Equal(t, 40.0, snap.TotalFailedCustomer)
	require.Len(t, snap.FailedCustomerRows, 1)
	assert.Contains(t, snap.FailedCustomerRows[0].Reason, "to many matches")
	assert.Equal(t, "Dup Co", snap.FailedCustomerRows[0].Name)
	orders.AssertNotCalled(t, "FindOrders", mock.Anything, mock.Anything)
}

func TestEngine_ScenarioD_NoIdentifierColumn(t *testing.T) {
	debtors := new(mocks.MockDebtorSource)
	orders := new(mocks.MockOrderGateway)
	debtors.On("LoadDebtors", mock.Anything).Return([]domain.Record{}, nil)

	categories := []domain.BillingCategory{{
		Name: "Exotic",
		Rows: []domain.Record{
			{"Description": "Thing", "Amount": 10.0, "Quantity": 1.0},
			{"Description": "Other", "Amount": 5.5, "Quantity": 2.0},
		},
	}}

	snap, err := newTestEngine(debtors, orders, domain.MergeByItemNameAndPrice).Run(context.Background(), []domain.Customer{{ID: "c1"}}, categories)
	require.NoError(t, err)

	assert.Equal(t, 15.5, snap.TotalNoIdentifier)
	assert.Zero(t, snap.TotalProcessed)
	assert.Empty(t, snap.SuccessRows)
	assert.Empty(t, snap.FailedDebtorRows)
	require.Len(t, snap.NoIdentifierRows, 2)
	assert.Equal(t, "No customer id column in billing file", snap.NoIdentifierRows[0].Note)
	orders.AssertNotCalled(t, "FindOrders", mock.Anything, mock.Anything)
}

func TestEngine_BlankIdentifierRow(t *testing.T) {
	debtors := new(mocks.MockDebtorSource)
	orders := new(mocks.MockOrderGateway)
	debtors.On("LoadDebtors", mock.Anything).Return([]domain.Record{}, nil)

	categories := []domain.BillingCategory{{
		Name: "Keepit",
		Rows: []domain.Record{{"Portal Customer Id": "  ", "Portal Customer VAT": "DK1", "Item Name": "Connector", "Amount": 9.0, "Quantity": 1.0}},
	}}

	snap, err := newTestEngine(debtors, orders, domain.MergeByItemNameAndPrice).Run(context.Background(), nil, categories)
	require.NoError(t, err)

	require.Len(t, snap.NoIdentifierRows, 1)
	assert.Equal(t, "Row has id column but Customer Id is empty", snap.NoIdentifierRows[0].Note)
	assert.Equal(t, "DK1", snap.NoIdentifierRows[0].VatID)
	assert.Equal(t, 9.0, snap.TotalNoIdentifier)
}

func TestEngine_PartitionInvariant(t *testing.T) {
	debtors := new(mocks.MockDebtorSource)
	orders := new(mocks.MockOrderGateway)

	debtors.On("LoadDebtors", mock.Anything).Return([]domain.Record{
		{"Account": "A1", "VatNumber": "11111111"},
		{"Account": "A3", "CVR": "33333333"},
	}, nil)
	orders.On("FindOrders", mock.Anything, "A1").Return([]domain.Record{{"OrderNumber": "1"}}, nil)
	orders.On("SubmitLines", mock.Anything, "1", mock.Anything).Return(nil)
	orders.On("FindOrders", mock.Anything, "A3").Return([]domain.Record{{"OrderNumber": "3"}}, nil)
	orders.On("SubmitLines", mock.Anything, "3", mock.Anything).Return(errors.New("erp rejected lines"))

	customers := []domain.Customer{
		{ID: "ok", VatID: "11111111", CountryCode: "DK"},
		{ID: "nodebtor", VatID: "22222222", CountryCode: "DK"},
		{ID: "rejected", VatID: "33333333", CountryCode: "DK"},
		{ID: "novat"},
		{ID: "dup"}, {ID: "DUP"},
	}
	categories := []domain.BillingCategory{
		{Name: "Backup", Rows: []domain.Record{
			{"Customer Id": "ok", "Item Name": "Backup", "Amount": 19.99, "Quantity": 1.0},
			{"Customer Id": "ok", "Item Name": "Backup", "Amount": 39.98, "Quantity": 2.0},
			{"Customer Id": "nodebtor", "Item Name": "Backup", "Amount": 12.5, "Quantity": 1.0},
			{"Customer Id": "missing", "Item Name": "Backup", "Amount": 3.33, "Quantity": 1.0},
			{"Customer Id": "", "Item Name": "Backup", "Amount": 4.0, "Quantity": 1.0},
		}},
		{Name: "Messaging Security", Rows: []domain.Record{
			{"Portal Customer Id": "{OK}", "Item Name": "Filter", "Amount": 7.0, "Quantity": 7.0, "Currency": "EUR"},
			{"Portal Customer Id": "rejected", "Item Name": "Filter", "Amount": 70.0, "Quantity": 7.0},
			{"Portal Customer Id": "novat", "Item Name": "Filter", "Amount": 1.1, "Quantity": 1.0},
			{"Portal Customer Id": "dup", "Item Name": "Filter", "Amount": 2.2, "Quantity": 1.0},
		}},
		{Name: "Exotic", Rows: []domain.Record{
			{"Description": "Mystery", "Amount": 5.55, "Quantity": 1.0},
		}},
	}

	snap, err := newTestEngine(debtors, orders, domain.MergeByItemNameAndPrice).Run(context.Background(), customers, categories)
	require.NoError(t, err)

	assert.InDelta(t, sumAmounts(categories), snap.BucketTotal(), 1e-6)
	assert.InDelta(t, sumAmounts(categories), snap.GrandTotal(), 1e-6)
	assert.InDelta(t, 0, snap.Adjustment, 1e-9)
	assert.InDelta(t, 19.99+39.98+7.0, snap.TotalSuccess, 1e-6)
	assert.InDelta(t, 12.5+70.0+1.1, snap.TotalFailedDebtor, 1e-6)
	assert.InDelta(t, 3.33+2.2, snap.TotalFailedCustomer, 1e-6)
	assert.InDelta(t, 4.0+5.55, snap.TotalNoIdentifier, 1e-6)
	assert.Len(t, snap.FailedDebtorRows, 3)
	assert.Len(t, snap.FailedCustomerRows, 2)
	assert.ElementsMatch(t, []string{"Backup", "Messaging Security", "Exotic"}, snap.Categories)
}

// singleDebtorFixture resolves customer c1 to debtor A1 with existing order 1.
func singleDebtorFixture() (*mocks.MockDebtorSource, *mocks.MockOrderGateway, []domain.Customer) {
	debtors := new(mocks.MockDebtorSource)
	orders := new(mocks.MockOrderGateway)
	debtors.On("LoadDebtors", mock.Anything).Return([]domain.Record{{"Account": "A1", "VatNumber": "12345678"}}, nil)
	orders.On("FindOrders", mock.Anything, "A1").Return([]domain.Record{{"OrderNumber": "1"}}, nil)
	return debtors, orders, []domain.Customer{{ID: "c1", VatID: "12345678", CountryCode: "DK"}}
}

func TestEngine_UnevenUnitPriceBalances(t *testing.T) {
	debtors, orders, customers := singleDebtorFixture()
	orders.On("SubmitLines", mock.Anything, "1", mock.Anything).Return(nil)

	row := domain.Record{"Customer Id": "c1", "Item Name": "Backup Service", "Amount": 100.0, "Quantity": 3.0}
	categories := []domain.BillingCategory{{Name: "Backup", Rows: []domain.Record{row, row, row}}}

	for _, policy := range []domain.MergePolicy{domain.MergeByItemName, domain.MergeByItemNameAndPrice} {
		t.Run(string(policy), func(t *testing.T) {
			snap, err := newTestEngine(debtors, orders, policy).Run(context.Background(), customers, categories)
			require.NoError(t, err)

			assert.InDelta(t, 300.0, snap.TotalProcessed, 1e-9)
			assert.InDelta(t, sumAmounts(categories), snap.BucketTotal(), 1e-6)
			assert.InDelta(t, 0, snap.Discrepancy, 1e-6)
			require.Len(t, snap.SuccessRows, 1)
			assert.Equal(t, 1, snap.SuccessRows[0].LineCount)
		})
	}
}

func TestEngine_ZeroQuantityCreditIsKept(t *testing.T) {
	debtors, orders, customers := singleDebtorFixture()
	orders.On("SubmitLines", mock.Anything, "1", []port.OrderLine{
		{OrderNumber: "1", Item: recon.DefaultOrderItem, Text: "X", Qty: 2, Total: 100},
		{OrderNumber: "1", Item: recon.DefaultOrderItem, Text: "X", Qty: 0, Total: -30},
	}).Return(nil)

	categories := []domain.BillingCategory{{Name: "Backup", Rows: []domain.Record{
		{"Customer Id": "c1", "Item Name": "X", "Amount": 100.0, "Quantity": 2.0},
		{"Customer Id": "c1", "Item Name": "X", "Amount": -30.0, "Quantity": 0.0},
	}}}

	snap, err := newTestEngine(debtors, orders, domain.MergeByItemName).Run(context.Background(), customers, categories)
	require.NoError(t, err)

	assert.InDelta(t, 70.0, snap.TotalProcessed, 1e-9)
	assert.InDelta(t, 70.0, snap.TotalSuccess, 1e-9)
	assert.InDelta(t, sumAmounts(categories), snap.BucketTotal(), 1e-6)
	orders.AssertExpectations(t)
}

func TestEngine_FixedPriceCategoryReportsAdjustment(t *testing.T) {
	debtors, orders, customers := singleDebtorFixture()
	orders.On("SubmitLines", mock.Anything, "1", []port.OrderLine{
		{OrderNumber: "1", Item: recon.DefaultOrderItem, Text: "cloud service", Qty: 2, Total: 100},
	}).Return(nil)

	cloud := string(domain.CategoryImpossibleCloud)
	categories := []domain.BillingCategory{{Name: cloud, Rows: []domain.Record{
		{"Customer Id": "c1", "Amount": 90.0, "Quantity": 2.0},
		{"Customer Id": "", "Amount": 25.0, "Quantity": 0.0},
	}}}

	snap, err := newTestEngine(debtors, orders, domain.MergeByItemNameAndPrice).Run(context.Background(), customers, categories)
	require.NoError(t, err)

	assert.Equal(t, 90.0, snap.TotalProcessed)
	assert.Equal(t, 25.0, snap.TotalNoIdentifier)
	assert.Equal(t, 100.0, snap.TotalSuccess)
	assert.InDelta(t, sumAmounts(categories), snap.GrandTotal(), 1e-6)
	assert.Equal(t, 10.0, snap.Adjustment)
	assert.Equal(t, map[string]float64{cloud: 10}, snap.Adjustments)
	assert.InDelta(t, sumAmounts(categories)+snap.Adjustment, snap.BucketTotal(), 1e-6)
	assert.InDelta(t, 0, snap.Unexplained(), 1e-9)
	require.Len(t, snap.NoIdentifierRows, 1)
	assert.Equal(t, 25.0, snap.NoIdentifierRows[0].Amount)
	orders.AssertExpectations(t)
}

func TestEngine_DebtorLoadFailureAbortsRun(t *testing.T) {
	debtors := new(mocks.MockDebtorSource)
	orders := new(mocks.MockOrderGateway)
	debtors.On("LoadDebtors", mock.Anything).Return(nil, errors.New("timeout"))

	categories := []domain.BillingCategory{{Name: "Backup", Rows: []domain.Record{{"CustomerId": "c1", "Amount": 1.0, "Quantity": 1.0}}}}

	snap, err := newTestEngine(debtors, orders, "").Run(context.Background(), []domain.Customer{{ID: "c1", VatID: "1"}}, categories)
	assert.Nil(t, snap)
	assert.ErrorContains(t, err, "timeout")
}

func TestEngine_CancelledContext(t *testing.T) {
	debtors := new(mocks.MockDebtorSource)
	orders := new(mocks.MockOrderGateway)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	categories := []domain.BillingCategory{{Name: "Backup", Rows: []domain.Record{{"CustomerId": "c1", "Amount": 1.0, "Quantity": 1.0}}}}

	snap, err := newTestEngine(debtors, orders, "").Run(ctx, nil, categories)
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, context.Canceled)
	debtors.AssertNotCalled(t, "LoadDebtors", mock.Anything)
}
