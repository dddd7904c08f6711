package order

import (
	"context"
	"errors"
	"testing"

	"warimas-pos/internal/cart"
	"warimas-pos/internal/category"
	"warimas-pos/internal/product"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStationResolver struct {
	mock.Mock
}

func (m *MockStationResolver) DispatchStation(ctx context.Context, categoryID string) (category.Station, error) {
	args := m.Called(ctx, categoryID)
	return args.Get(0).(category.Station), args.Error(1)
}

func TestCalculateTaxAmount(t *testing.T) {
	tests := []struct {
		total int64
		want  int64
	}{
		{0, 0},
		{110000, 10000},
		{55000, 5000},
		{25000, 2273},
		{11, 1},
		{5, 0},
		{6, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CalculateTaxAmount(tt.total), "total=%d", tt.total)
	}
}

func TestMapDiscountType(t *testing.T) {
	assert.Nil(t, MapDiscountType(nil))

	pct := cart.DiscountPercent
	assert.Equal(t, DiscountPercentage, *MapDiscountType(&pct))

	amt := cart.DiscountAmount
	assert.Equal(t, DiscountAmount, *MapDiscountType(&amt))
}

func latte() *product.Product {
	cat := "cat-coffee"
	sku := "LAT-01"
	return &product.Product{ID: "p-latte", Name: "Latte", SKU: &sku, CategoryID: &cat}
}

func TestConvertCartItem(t *testing.T) {
	ctx := context.Background()

	t.Run("Product resolves station from category", func(t *testing.T) {
		stations := new(MockStationResolver)
		stations.On("DispatchStation", ctx, "cat-coffee").Return(category.StationBarista, nil)
		conv := NewCartConverter(nil, stations)

		in, err := conv.ConvertCartItem(ctx, cart.Item{
			ID:        "line-1",
			Type:      cart.ItemTypeProduct,
			Product:   latte(),
			Quantity:  2,
			UnitPrice: 30000,
			Modifiers: []cart.Modifier{
				{GroupName: "Milk", OptionID: "oat", OptionLabel: "Oat", PriceAdjustment: 5000},
			},
			TotalPrice: 70000,
		})

		require.NoError(t, err)
		assert.Equal(t, "p-latte", in.ProductID)
		assert.Equal(t, "LAT-01", *in.ProductSKU)
		assert.Equal(t, int64(70000), in.Subtotal)
		assert.Equal(t, category.StationBarista, *in.DispatchStation)
		assert.Nil(t, in.Notes)
		assert.Equal(t, []ItemModifier{{OptionID: "oat", GroupName: "Milk", OptionLabel: "Oat", PriceAdjustment: 5000}}, in.Modifiers)
		stations.AssertExpectations(t)
	})

	t.Run("Combo selections become modifiers", func(t *testing.T) {
		stations := new(MockStationResolver)
		conv := NewCartConverter(nil, stations)

		in, err := conv.ConvertCartItem(ctx, cart.Item{
			Type:  cart.ItemTypeCombo,
			Combo: &cart.Combo{ID: "combo-1", Name: "Breakfast Set"},
			ComboSelections: []cart.ComboSelection{
				{GroupName: "Drink", ItemID: "ci-1", ProductName: "Tea", PriceAdjustment: 0},
			},
			Quantity: 1,
			Notes:    "no sugar",
		})

		require.NoError(t, err)
		assert.Equal(t, "combo-1", in.ProductID)
		assert.Nil(t, in.ProductSKU)
		assert.Nil(t, in.DispatchStation)
		assert.Equal(t, "no sugar", *in.Notes)
		assert.Equal(t, []ItemModifier{{OptionID: "ci-1", GroupName: "Drink", OptionLabel: "Tea"}}, in.Modifiers)
		stations.AssertNotCalled(t, "DispatchStation", mock.Anything, mock.Anything)
	})

	t.Run("Neither product nor combo", func(t *testing.T) {
		conv := NewCartConverter(nil, new(MockStationResolver))
		_, err := conv.ConvertCartItem(ctx, cart.Item{Type: cart.ItemTypeProduct})
		assert.ErrorIs(t, err, ErrInvalidCartItem)
	})

	t.Run("Resolver error", func(t *testing.T) {
		stations := new(MockStationResolver)
		boom := errors.New("store closed")
		stations.On("DispatchStation", ctx, "cat-coffee").Return(category.StationNone, boom)
		conv := NewCartConverter(nil, stations)

		_, err := conv.ConvertCartItem(ctx, cart.Item{Type: cart.ItemTypeProduct, Product: latte(), Quantity: 1})
		assert.ErrorIs(t, err, boom)
	})
}

func TestCreateOfflineOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("Guards", func(t *testing.T) {
		conv := NewCartConverter(nil, new(MockStationResolver))

		_, err := conv.CreateOfflineOrder(ctx, cart.State{Items: []cart.Item{{}}}, "", nil)
		assert.ErrorIs(t, err, ErrUserRequired)

		_, err = conv.CreateOfflineOrder(ctx, cart.State{}, "u1", nil)
		assert.ErrorIs(t, err, ErrEmptyCart)
	})

	t.Run("Saves the cart", func(t *testing.T) {
		stations := new(MockStationResolver)
		stations.On("DispatchStation", ctx, "cat-coffee").Return(category.StationBarista, nil)
		svc := NewService(NewRepository(openStore(t)), WithClock(fixedClock))
		conv := NewCartConverter(svc, stations)

		table := "12"
		reason := "loyalty"
		pct := cart.DiscountPercent
		session := "LOCAL-SESSION-1"
		state := cart.State{
			Items: []cart.Item{{
				ID: "line-1", Type: cart.ItemTypeProduct, Product: latte(),
				Quantity: 2, UnitPrice: 30000, TotalPrice: 60000,
			}},
			OrderType:      cart.OrderTypeDineIn,
			TableNumber:    &table,
			DiscountType:   &pct,
			DiscountValue:  10,
			DiscountReason: &reason,
			Subtotal:       60000,
			DiscountAmount: 6000,
			Total:          54000,
		}

		res, err := conv.CreateOfflineOrder(ctx, state, "u1", &session)

		require.NoError(t, err)
		o := res.Order
		assert.Equal(t, "OFFLINE-20261017-001", o.OrderNumber)
		assert.Equal(t, TypeDineIn, o.OrderType)
		assert.Equal(t, int64(4909), o.TaxAmount)
		assert.Equal(t, DiscountPercentage, *o.DiscountType)
		assert.Equal(t, 10.0, *o.DiscountValue)
		assert.Equal(t, "loyalty", *o.Notes)
		assert.Equal(t, "12", *o.TableNumber)
		assert.Equal(t, session, *o.SessionID)
		assert.Equal(t, o.Subtotal-o.DiscountAmount, o.Total)
		require.Len(t, res.Items, 1)
		assert.Equal(t, category.StationBarista, *res.Items[0].DispatchStation)
	})

	t.Run("Zero discount value is stored as null", func(t *testing.T) {
		svc := NewService(NewRepository(openStore(t)), WithClock(fixedClock))
		conv := NewCartConverter(svc, new(MockStationResolver))

		res, err := conv.CreateOfflineOrder(ctx, cart.State{
			Items: []cart.Item{{
				Type: cart.ItemTypeCombo, Combo: &cart.Combo{ID: "combo-1", Name: "Set"},
				Quantity: 1, UnitPrice: 45000, TotalPrice: 45000,
			}},
			OrderType: cart.OrderTypeTakeaway,
			Subtotal:  45000,
			Total:     45000,
		}, "u1", nil)

		require.NoError(t, err)
		assert.Nil(t, res.Order.DiscountValue)
		assert.Nil(t, res.Order.DiscountType)
		assert.Nil(t, res.Order.Notes)
	})
}
