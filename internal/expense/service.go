package expense

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zombor/xpense/internal/bill"
)

var (
	ErrNotFound       = errors.New("expense not found")
	ErrTitleRequired  = errors.New("title is required")
	ErrAmountRequired = errors.New("amount is required")
	ErrInvalidAmount  = errors.New("amount must be positive")
	ErrNoParticipants = errors.New("at least one participant is required")
	ErrForbidden      = errors.New("only the creator can modify this expense")
)

// AmountSourceManual marks an amount typed in by the submitter
const AmountSourceManual = "manual"

// BillProcessor runs the bill image pipeline
type BillProcessor interface {
	Process(ctx context.Context, data []byte, contentType string) (bill.Result, error)
}

// IDGenerator generates unique IDs for expenses
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles expense operations
type Service struct {
	db          DB
	processor   BillProcessor
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, processor BillProcessor) *Service {
	return NewServiceWithDeps(db, processor, uuidGenerator{}, defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, processor BillProcessor, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		processor:   processor,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// AnalyzeBill runs the bill pipeline without creating an expense
func (s *Service) AnalyzeBill(ctx context.Context, data []byte, contentType string) (bill.Result, error) {
	result, err := s.processor.Process(ctx, data, contentType)
	if err != nil {
		return bill.Result{}, fmt.Errorf("analyzing bill: %w", err)
	}
	return result, nil
}

// CreateExpense validates the input, analyzes the bill image if one was
// attached and saves the expense with equal splits.
func (s *Service) CreateExpense(ctx context.Context, creator string, in NewExpense) (*Expense, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}

	participants := normalizeParticipants(in.Participants)
	if len(participants) == 0 {
		return nil, ErrNoParticipants
	}

	amount := in.Amount
	amountSource := AmountSourceManual
	description := strings.TrimSpace(in.Description)

	var result bill.Result
	if len(in.BillImage) > 0 {
		var err error
		result, err = s.processor.Process(ctx, in.BillImage, in.ContentType)
		if err != nil {
			return nil, fmt.Errorf("processing bill image: %w", err)
		}

		if !amount.Valid && result.Amount.Valid {
			amount = result.Amount
			amountSource = result.Source
		}
		if description == "" {
			description = result.Description
		}
	}

	if !amount.Valid {
		return nil, ErrAmountRequired
	}
	total := amount.Decimal.Round(2)
	if !total.IsPositive() {
		return nil, ErrInvalidAmount
	}

	now := s.timeSource.Now()
	expense := &Expense{
		ID:           s.idGenerator.Generate(),
		Title:        title,
		Amount:       total,
		Description:  description,
		Category:     strings.TrimSpace(in.Category),
		SplitType:    SplitEqual,
		CreatorID:    creator,
		Participants: participants,
		Splits:       equalSplits(total, participants),
		BillImageURL: result.ImageURL,
		OCRText:      result.RawText,
		AmountSource: amountSource,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.db.SaveExpense(expense); err != nil {
		return nil, fmt.Errorf("saving expense to database: %w", err)
	}

	slog.Info("Expense created",
		"id", expense.ID,
		"creator", creator,
		"amount", expense.Amount.StringFixed(2),
		"amount_source", amountSource,
		"participants", len(participants),
	)

	return expense, nil
}

// GetExpense retrieves an expense by ID
func (s *Service) GetExpense(id string) (*Expense, error) {
	expense, err := s.db.GetExpense(id)
	if err != nil {
		return nil, fmt.Errorf("getting expense: %w", err)
	}
	return expense, nil
}

// DefaultListLimit is the page size used when a caller does not ask for one
const DefaultListLimit = 10

// MaxListLimit caps the page size
const MaxListLimit = 100

// ListFilter selects a page of expenses. An empty Participant matches every
// expense; a zero Limit means DefaultListLimit.
type ListFilter struct {
	Participant string
	Skip        int
	Limit       int
}

// ListExpenses returns a page of expenses, newest first
func (s *Service) ListExpenses(filter ListFilter) ([]*Expense, error) {
	expenses, err := s.db.ListExpenses()
	if err != nil {
		return nil, fmt.Errorf("listing expenses: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	page := make([]*Expense, 0, limit)
	skipped := 0
	for _, expense := range expenses {
		if filter.Participant != "" && !slices.Contains(expense.Participants, filter.Participant) {
			continue
		}
		if skipped < filter.Skip {
			skipped++
			continue
		}
		if len(page) == limit {
			break
		}
		page = append(page, expense)
	}
	return page, nil
}

// DeleteExpense removes an expense. Only its creator may delete it.
func (s *Service) DeleteExpense(id, requester string) error {
	expense, err := s.db.GetExpense(id)
	if err != nil {
		return fmt.Errorf("getting expense for deletion: %w", err)
	}
	if expense.CreatorID != requester {
		return ErrForbidden
	}
	if err := s.db.DeleteExpense(id); err != nil {
		return fmt.Errorf("deleting expense from database: %w", err)
	}
	return nil
}

// normalizeParticipants trims names, splits comma lists and drops duplicates
func normalizeParticipants(raw []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, entry := range raw {
		for _, name := range strings.Split(entry, ",") {
			name = strings.TrimSpace(name)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// ParseAmount parses an optional user-entered amount. Blank input is not an error.
func ParseAmount(s string) (decimal.NullDecimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(strings.Replace(s, ",", ".", 1))
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return decimal.NewNullDecimal(d), nil
}
