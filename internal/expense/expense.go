package expense

import (
	"time"

	"github.com/shopspring/decimal"
)

// SplitEqual is the only split strategy supported today
const SplitEqual = "equal"

// Expense represents a shared expense, optionally backed by a bill image
type Expense struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	Category     string          `json:"category,omitempty"`
	SplitType    string          `json:"split_type"`
	CreatorID    string          `json:"creator_id"`
	Participants []string        `json:"participants"`
	Splits       []Split         `json:"splits"`
	BillImageURL string          `json:"bill_image_url,omitempty"`
	OCRText      string          `json:"ocr_text,omitempty"`
	AmountSource string          `json:"amount_source"` // "manual", "ocr" or "vision:<provider>:<model>"
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Split is one participant's share of an expense
type Split struct {
	Participant string          `json:"participant"`
	Amount      decimal.Decimal `json:"amount"`
}

// NewExpense holds the caller-supplied fields for creating an expense
type NewExpense struct {
	Title        string
	Amount       decimal.NullDecimal
	Description  string
	Category     string
	Participants []string
	BillImage    []byte
	ContentType  string
}

// equalSplits divides amount over participants in whole cents. Leftover cents
// go to the first participants so the splits always add up to amount.
func equalSplits(amount decimal.Decimal, participants []string) []Split {
	n := len(participants)
	if n == 0 {
		return nil
	}

	totalCents := amount.Shift(2).Truncate(0)
	base, rem := totalCents.QuoRem(decimal.NewFromInt(int64(n)), 0)
	leftover := rem.IntPart() // always < n

	cent := decimal.New(1, -2)
	share := base.Shift(-2)

	splits := make([]Split, 0, n)
	for i, p := range participants {
		value := share
		if int64(i) < leftover {
			value = value.Add(cent)
		}
		splits = append(splits, Split{Participant: p, Amount: value})
	}
	return splits
}
