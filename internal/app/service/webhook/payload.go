package webhook

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/fatflowers/craftbill/internal/models"
)

// ExpandableID decodes a Stripe reference that is either an id string or an
// expanded object with an "id" field.
type ExpandableID string

func (e *ExpandableID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*e = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*e = ExpandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*e = ExpandableID(obj.ID)
	return nil
}

func (e ExpandableID) String() string { return strings.TrimSpace(string(e)) }

// Customer is a minimal representation of a Stripe customer object.
type Customer struct {
	ID       string            `json:"id"`
	Email    string            `json:"email"`
	Name     string            `json:"name"`
	Phone    string            `json:"phone"`
	Metadata map[string]string `json:"metadata"`
}

// AccountID is the internal account the checkout flow stamped on the customer.
func (c *Customer) AccountID() string {
	return strings.TrimSpace(c.Metadata[MetadataAccountID])
}

func (c *Customer) Contact() models.ContactFields {
	return models.ContactFields{Email: c.Email, Name: c.Name, Phone: c.Phone}
}

// Charge is a minimal representation of a Stripe charge object.
type Charge struct {
	ID             string       `json:"id"`
	Customer       ExpandableID `json:"customer"`
	ReceiptEmail   string       `json:"receipt_email"`
	BillingDetails struct {
		Email string `json:"email"`
		Name  string `json:"name"`
		Phone string `json:"phone"`
	} `json:"billing_details"`
}

func (c *Charge) Contact() models.ContactFields {
	email := c.BillingDetails.Email
	if email == "" {
		email = c.ReceiptEmail
	}
	return models.ContactFields{Email: email, Name: c.BillingDetails.Name, Phone: c.BillingDetails.Phone}
}

// Invoice is a minimal representation of a Stripe invoice object.
type Invoice struct {
	ID            string       `json:"id"`
	Customer      ExpandableID `json:"customer"`
	CustomerEmail string       `json:"customer_email"`
	CustomerName  string       `json:"customer_name"`
	CustomerPhone string       `json:"customer_phone"`
	Status        string       `json:"status"`
	AmountDue     int64        `json:"amount_due"`
	AmountPaid    int64        `json:"amount_paid"`
	Currency      string       `json:"currency"`
	PeriodStart   int64        `json:"period_start"`
	PeriodEnd     int64        `json:"period_end"`
	// Subscription is populated on API versions before the invoice parent field.
	Subscription ExpandableID `json:"subscription"`
	Parent       struct {
		SubscriptionDetails struct {
			Subscription ExpandableID `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
	StatusTransitions struct {
		PaidAt int64 `json:"paid_at"`
	} `json:"status_transitions"`
	Lines struct {
		Data []InvoiceLine `json:"data"`
	} `json:"lines"`
}

type InvoiceLine struct {
	Description string `json:"description"`
	Period      struct {
		Start int64 `json:"start"`
		End   int64 `json:"end"`
	} `json:"period"`
}

func (i *Invoice) SubscriptionID() string {
	if id := i.Parent.SubscriptionDetails.Subscription.String(); id != "" {
		return id
	}
	return i.Subscription.String()
}

func (i *Invoice) Contact() models.ContactFields {
	return models.ContactFields{Email: i.CustomerEmail, Name: i.CustomerName, Phone: i.CustomerPhone}
}

// HasTrialLine reports whether any line item description contains marker.
func (i *Invoice) HasTrialLine(marker string) bool {
	marker = strings.ToLower(strings.TrimSpace(marker))
	if marker == "" {
		return false
	}
	for _, l := range i.Lines.Data {
		if strings.Contains(strings.ToLower(l.Description), marker) {
			return true
		}
	}
	return false
}

func (i *Invoice) ToModel() *models.Invoice {
	start, end := i.PeriodStart, i.PeriodEnd
	// Subscription invoices bill the line period, not the invoice period.
	if len(i.Lines.Data) > 0 && i.Lines.Data[0].Period.End > 0 {
		start, end = i.Lines.Data[0].Period.Start, i.Lines.Data[0].Period.End
	}
	return &models.Invoice{
		InvoiceID:      i.ID,
		SubscriptionID: i.SubscriptionID(),
		CustomerID:     i.Customer.String(),
		PeriodStart:    unixPtr(start),
		PeriodEnd:      unixPtr(end),
		Status:         i.Status,
		AmountDue:      i.AmountDue,
		AmountPaid:     i.AmountPaid,
		Currency:       i.Currency,
		PaidAt:         unixPtr(i.StatusTransitions.PaidAt),
	}
}

// Subscription is a minimal representation of a Stripe subscription object.
type Subscription struct {
	ID                  string       `json:"id"`
	Customer            ExpandableID `json:"customer"`
	Status              string       `json:"status"`
	TrialStart          int64        `json:"trial_start"`
	TrialEnd            int64        `json:"trial_end"`
	CanceledAt          int64        `json:"canceled_at"`
	CancelAtPeriodEnd   bool         `json:"cancel_at_period_end"`
	CancellationDetails struct {
		Reason   string `json:"reason"`
		Feedback string `json:"feedback"`
		Comment  string `json:"comment"`
	} `json:"cancellation_details"`
	Items struct {
		Data []struct {
			CurrentPeriodStart int64 `json:"current_period_start"`
			CurrentPeriodEnd   int64 `json:"current_period_end"`
			Price              struct {
				Recurring struct {
					Interval string `json:"interval"`
				} `json:"recurring"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// CurrentPeriod returns the first item's billing period, falling back to the
// trial window when the payload carries none.
func (s *Subscription) CurrentPeriod() (*time.Time, *time.Time) {
	if len(s.Items.Data) > 0 && s.Items.Data[0].CurrentPeriodEnd > 0 {
		return unixPtr(s.Items.Data[0].CurrentPeriodStart), unixPtr(s.Items.Data[0].CurrentPeriodEnd)
	}
	return unixPtr(s.TrialStart), unixPtr(s.TrialEnd)
}

func (s *Subscription) Interval() string {
	if len(s.Items.Data) == 0 {
		return ""
	}
	return s.Items.Data[0].Price.Recurring.Interval
}

// PaymentIntent is a minimal representation of a Stripe payment_intent object.
type PaymentIntent struct {
	ID               string       `json:"id"`
	Customer         ExpandableID `json:"customer"`
	Invoice          ExpandableID `json:"invoice"`
	Amount           int64        `json:"amount"`
	Currency         string       `json:"currency"`
	Created          int64        `json:"created"`
	LastPaymentError struct {
		Code        string `json:"code"`
		DeclineCode string `json:"decline_code"`
		Message     string `json:"message"`
	} `json:"last_payment_error"`
}

func (p *PaymentIntent) FailureCode() string {
	if p.LastPaymentError.DeclineCode != "" {
		return p.LastPaymentError.DeclineCode
	}
	return p.LastPaymentError.Code
}

func unixPtr(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
