package model

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// суммы уходят в API числом, как их отправляет фронтенд
	decimal.MarshalJSONWithoutQuotes = true
}

// Заказы

type OrderStatus string

const (
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusShipped    OrderStatus = "Shipped"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusCancelled  OrderStatus = "Cancelled"
)

// OrderStatuses returns the closed set of order statuses in display order.
func OrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusProcessing,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusCancelled,
	}
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

type Order struct {
	ID       string          `json:"_id"`
	Date     Timestamp       `json:"date"`
	Customer string          `json:"customer"`
	Total    decimal.Decimal `json:"total"`
	Status   OrderStatus     `json:"status"`
	Items    Items           `json:"items,omitempty"`
}

func (o Order) EntityID() string { return o.ID }

type Item struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Items is the optional line-item list of an order. Anything but a JSON array decodes to an empty list.
type Items []Item

func (items *Items) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		*items = nil
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		*items = nil
		return nil
	}
	parsed := make(Items, 0, len(raw))
	for _, r := range raw {
		var item Item
		// битая позиция пропускается, остальные сохраняются
		if err := json.Unmarshal(r, &item); err != nil {
			continue
		}
		parsed = append(parsed, item)
	}
	*items = parsed
	return nil
}

// Timestamp is an order event time. Unparseable values decode without error into an invalid timestamp.
type Timestamp struct {
	time.Time
	Raw string
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

func ParseTimestamp(value string) Timestamp {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return Timestamp{Time: t, Raw: value}
		}
	}
	return Timestamp{Raw: value}
}

func (ts Timestamp) Valid() bool {
	return !ts.Time.IsZero()
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.Valid() {
		return json.Marshal(ts.Time.Format(time.RFC3339Nano))
	}
	if ts.Raw == "" {
		return []byte("null"), nil
	}
	return json.Marshal(ts.Raw)
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		*ts = Timestamp{Raw: string(data)}
		return nil
	}
	*ts = ParseTimestamp(value)
	return nil
}

// Новый заказ, статус по умолчанию проставляет сервер

type OrderDraft struct {
	Customer string          `json:"customer" validate:"required"`
	Total    decimal.Decimal `json:"total"`
}

type OrderStatusPatch struct {
	Status OrderStatus `json:"status" validate:"required"`
}

// Покупатели

type Customer struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

func (c Customer) EntityID() string { return c.ID }

type CustomerDraft struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone,omitempty"`
}

// Каталог

type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	Category string          `json:"category"`
	Image    string          `json:"image,omitempty"`
}

// Аналитика

type RevenuePoint struct {
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
}

type ProductSales struct {
	Name  string `json:"name"`
	Sales int    `json:"sales"`
}

type Summary struct {
	WindowDays   int             `json:"windowDays"`
	Revenue      decimal.Decimal `json:"revenue"`
	Orders       int             `json:"orders"`
	AverageOrder decimal.Decimal `json:"averageOrder"`
}
