package shop

import "time"

// SeedResult reports what Seed created.
type SeedResult struct {
	Customer *Customer
	Orders   []*Order
	Written  int
}

type seedLine struct {
	sku      string
	quantity int
}

var seedOrders = []struct {
	note  string
	lines []seedLine
}{
	{note: "first order", lines: []seedLine{{"KB-101", 1}, {"MS-220", 2}}},
	{note: "restock", lines: []seedLine{{"CB-USB-C", 4}}},
}

// Seed adds a sample customer with two orders and their items in one unit
// of work. Keys are generated on Add.
func (s *Session) Seed(now time.Time) (SeedResult, error) {
	c := &Customer{Name: "Ada Lovelace", Email: "ada@example.com"}
	if _, err := s.tc.Add(c); err != nil {
		return SeedResult{}, err
	}

	result := SeedResult{Customer: c}
	for i, so := range seedOrders {
		o := &Order{
			CustomerID: c.CustomerID,
			Note:       so.note,
			PlacedAt:   now.Add(time.Duration(i) * time.Hour).UTC(),
			Customer:   c,
		}
		if _, err := s.tc.Add(o); err != nil {
			return SeedResult{}, err
		}
		for _, line := range so.lines {
			it := &Item{OrderID: o.OrderID, SKU: line.sku, Quantity: line.quantity, Order: o}
			if _, err := s.tc.Add(it); err != nil {
				return SeedResult{}, err
			}
			o.Items = append(o.Items, it)
		}
		c.Orders = append(c.Orders, o)
		result.Orders = append(result.Orders, o)
	}

	n, err := s.SaveChanges()
	if err != nil {
		return SeedResult{}, err
	}
	result.Written = n
	return result, nil
}
