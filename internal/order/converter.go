package order

import (
	"context"

	"warimas-pos/internal/cart"
	"warimas-pos/internal/category"
	"warimas-pos/internal/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StationResolver maps a category to the station its items are prepared at.
type StationResolver interface {
	DispatchStation(ctx context.Context, categoryID string) (category.Station, error)
}

// CartConverter turns the in-progress cart into a saved offline order.
type CartConverter struct {
	orders   Service
	stations StationResolver
}

func NewCartConverter(orders Service, stations StationResolver) *CartConverter {
	return &CartConverter{orders: orders, stations: stations}
}

var (
	taxRate    = decimal.NewFromInt(10)
	taxDivisor = decimal.NewFromInt(110)
)

// CalculateTaxAmount extracts the 10% tax already included in total.
func CalculateTaxAmount(total int64) int64 {
	return decimal.NewFromInt(total).Mul(taxRate).Div(taxDivisor).Round(0).IntPart()
}

// MapDiscountType converts the cart's discount kind to the order's.
func MapDiscountType(t *cart.DiscountType) *DiscountType {
	if t == nil {
		return nil
	}
	var out DiscountType
	switch *t {
	case cart.DiscountPercent:
		out = DiscountPercentage
	default:
		out = DiscountType(*t)
	}
	return &out
}

func convertModifiers(mods []cart.Modifier) []ItemModifier {
	out := make([]ItemModifier, 0, len(mods))
	for _, m := range mods {
		out = append(out, ItemModifier{
			OptionID:        m.OptionID,
			GroupName:       m.GroupName,
			OptionLabel:     m.OptionLabel,
			PriceAdjustment: m.PriceAdjustment,
		})
	}
	return out
}

func convertSelections(sels []cart.ComboSelection) []ItemModifier {
	out := make([]ItemModifier, 0, len(sels))
	for _, s := range sels {
		out = append(out, ItemModifier{
			OptionID:        s.ItemID,
			GroupName:       s.GroupName,
			OptionLabel:     s.ProductName,
			PriceAdjustment: s.PriceAdjustment,
		})
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ConvertCartItem maps one cart line to an order item input.
func (c *CartConverter) ConvertCartItem(ctx context.Context, it cart.Item) (ItemInput, error) {
	switch {
	case it.Type == cart.ItemTypeProduct && it.Product != nil:
		p := it.Product
		var station *category.Station
		if p.CategoryID != nil && *p.CategoryID != "" {
			st, err := c.stations.DispatchStation(ctx, *p.CategoryID)
			if err != nil {
				return ItemInput{}, err
			}
			station = &st
		}
		return ItemInput{
			ProductID:       p.ID,
			ProductName:     p.Name,
			ProductSKU:      p.SKU,
			Quantity:        it.Quantity,
			UnitPrice:       it.UnitPrice,
			Subtotal:        it.TotalPrice,
			Modifiers:       convertModifiers(it.Modifiers),
			Notes:           optional(it.Notes),
			DispatchStation: station,
			ItemStatus:      ItemNew,
		}, nil

	case it.Type == cart.ItemTypeCombo && it.Combo != nil:
		// Combos have no station of their own.
		return ItemInput{
			ProductID:   it.Combo.ID,
			ProductName: it.Combo.Name,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Subtotal:    it.TotalPrice,
			Modifiers:   convertSelections(it.ComboSelections),
			Notes:       optional(it.Notes),
			ItemStatus:  ItemNew,
		}, nil
	}

	return ItemInput{}, ErrInvalidCartItem
}

// CreateOfflineOrder saves the cart as an order owned by userID.
func (c *CartConverter) CreateOfflineOrder(ctx context.Context, state cart.State, userID string, sessionID *string) (*WithItems, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CreateOfflineOrder"),
		zap.String("user_id", userID),
	)

	if userID == "" {
		return nil, ErrUserRequired
	}
	if len(state.Items) == 0 {
		return nil, ErrEmptyCart
	}

	var discountValue *float64
	if state.DiscountValue != 0 {
		v := state.DiscountValue
		discountValue = &v
	}

	input := Input{
		Status:         StatusNew,
		OrderType:      Type(state.OrderType),
		Subtotal:       state.Subtotal,
		TaxAmount:      CalculateTaxAmount(state.Total),
		DiscountAmount: state.DiscountAmount,
		DiscountType:   MapDiscountType(state.DiscountType),
		DiscountValue:  discountValue,
		Total:          state.Total,
		CustomerID:     state.CustomerID,
		TableNumber:    state.TableNumber,
		Notes:          state.DiscountReason,
		UserID:         userID,
		SessionID:      sessionID,
	}

	items := make([]ItemInput, 0, len(state.Items))
	for _, it := range state.Items {
		in, err := c.ConvertCartItem(ctx, it)
		if err != nil {
			log.Warn("cart item rejected", zap.String("cart_item_id", it.ID), zap.Error(err))
			return nil, err
		}
		items = append(items, in)
	}

	return c.orders.SaveOfflineOrder(ctx, input, items)
}
