// Package receipt renders finalized bills as shareable plain text and
// builds the outbound notification payloads. Dispatch (email, SMS,
// WhatsApp) happens elsewhere; only the text and payload shapes live here.
package receipt

import (
	"fmt"
	"net/url"
	"strings"

	"supermarket/terminal/internal/domain"
)

// BillText renders a bill the way the printed slip reads: header, one line
// per item, then total, payment method and timestamp.
func BillText(bill domain.Bill) string {
	var b strings.Builder
	b.WriteString("Supermarket Bill\n")
	if bill.BillNumber != "" {
		fmt.Fprintf(&b, "Bill No: %s\n", bill.BillNumber)
	}
	b.WriteString("\n")

	for _, item := range bill.Items {
		fmt.Fprintf(&b, "%s x%d = ₹%s\n", item.Name, item.Quantity, formatAmount(item.Total))
	}

	fmt.Fprintf(&b, "\nTotal: ₹%s", formatAmount(bill.TotalAmount))
	fmt.Fprintf(&b, "\nPayment: %s", bill.PaymentMethod)
	fmt.Fprintf(&b, "\nDate: %s", bill.CreatedAt.Format("02 Jan 2006 15:04"))
	return b.String()
}

// formatAmount prints whole rupee amounts without a decimal tail and
// fractional ones with two places.
func formatAmount(amount float64) string {
	if amount == float64(int64(amount)) {
		return fmt.Sprintf("%d", int64(amount))
	}
	return fmt.Sprintf("%.2f", amount)
}

// WhatsAppURL is the share link the UI opens; the bill text travels in the
// text query parameter.
func WhatsAppURL(bill domain.Bill) string {
	return "https://wa.me/?text=" + url.QueryEscape(BillText(bill))
}

// EmailPayload builds the POST /notify/email body for a bill.
func EmailPayload(email string, bill domain.Bill) domain.EmailNotifyRequest {
	return domain.EmailNotifyRequest{Email: email, BillText: BillText(bill)}
}

// SMSPayload builds the POST /notify/sms body for a bill.
func SMSPayload(phone string, bill domain.Bill) domain.SMSNotifyRequest {
	return domain.SMSNotifyRequest{Phone: phone, BillText: BillText(bill)}
}
