package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/xenking/catalog-service/internal/domain/product"
)

// ProductNotifier turns catalog events into emails to a fixed recipient.
type ProductNotifier struct {
	sender Sender
	to     string
}

// NewProductNotifier creates a ProductNotifier sending through s.
func NewProductNotifier(s Sender, to string) *ProductNotifier {
	return &ProductNotifier{sender: s, to: to}
}

var _ product.Notifier = (*ProductNotifier)(nil)

// Notify implements product.Notifier.
func (n *ProductNotifier) Notify(ctx context.Context, e product.Event) error {
	subject, body := render(e)
	return n.sender.Send(ctx, n.to, subject, body)
}

func render(e product.Event) (subject, body string) {
	p := e.Product
	var b strings.Builder

	switch e.Kind {
	case product.EventDeleted:
		subject = fmt.Sprintf("Product deleted: #%d", p.ID)
		fmt.Fprintf(&b, "Product #%d was removed from the catalog.\n", p.ID)
		return subject, b.String()
	case product.EventCreated:
		subject = "Product created: " + p.Name
		fmt.Fprintf(&b, "A new product was added to the catalog.\n\n")
	default:
		subject = "Product updated: " + p.Name
		fmt.Fprintf(&b, "A catalog product was updated.\n\n")
	}

	fmt.Fprintf(&b, "ID:        %d\n", p.ID)
	fmt.Fprintf(&b, "Name:      %s\n", p.Name)
	fmt.Fprintf(&b, "Category:  %s\n", p.Category)
	fmt.Fprintf(&b, "Price:     %s USD\n", p.Price.StringFixed(2))
	fmt.Fprintf(&b, "Available: %t\n", p.Available)
	return subject, b.String()
}
