package expense

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		dbPath string
		db     *BoltDB
	)

	newExpense := func(id string, created time.Time) *Expense {
		return &Expense{
			ID:           id,
			Title:        "Dinner",
			Amount:       decimal.RequireFromString("45.00"),
			SplitType:    SplitEqual,
			CreatorID:    "alice",
			Participants: []string{"alice", "bob"},
			Splits: []Split{
				{Participant: "alice", Amount: decimal.RequireFromString("22.50")},
				{Participant: "bob", Amount: decimal.RequireFromString("22.50")},
			},
			AmountSource: AmountSourceManual,
			CreatedAt:    created,
			UpdatedAt:    created,
		}
	}

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("SaveExpense and GetExpense", func() {
		It("should round trip the expense", func() {
			created := time.Date(2024, 1, 15, 19, 30, 0, 0, time.UTC)
			Expect(db.SaveExpense(newExpense("expense-1", created))).To(Succeed())

			expense, err := db.GetExpense("expense-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(expense.Title).To(Equal("Dinner"))
			Expect(expense.Amount.Equal(decimal.RequireFromString("45"))).To(BeTrue())
			Expect(expense.Splits).To(HaveLen(2))
			Expect(expense.CreatedAt.Equal(created)).To(BeTrue())
		})

		It("should overwrite an expense with the same id", func() {
			first := newExpense("expense-1", time.Now())
			Expect(db.SaveExpense(first)).To(Succeed())
			first.Title = "Lunch"
			Expect(db.SaveExpense(first)).To(Succeed())

			expense, err := db.GetExpense("expense-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(expense.Title).To(Equal("Lunch"))
		})

		It("returns a not found error for unknown ids", func() {
			_, err := db.GetExpense("missing")
			Expect(err).To(MatchError(ErrNotFound))
		})
	})

	Describe("ListExpenses", func() {
		When("the database is empty", func() {
			It("should return an empty list", func() {
				expenses, err := db.ListExpenses()
				Expect(err).NotTo(HaveOccurred())
				Expect(expenses).To(BeEmpty())
			})
		})

		When("expenses exist", func() {
			BeforeEach(func() {
				base := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
				Expect(db.SaveExpense(newExpense("a", base))).To(Succeed())
				Expect(db.SaveExpense(newExpense("b", base.Add(2*time.Hour)))).To(Succeed())
				Expect(db.SaveExpense(newExpense("c", base.Add(time.Hour)))).To(Succeed())
			})

			It("should return them newest first", func() {
				expenses, err := db.ListExpenses()
				Expect(err).NotTo(HaveOccurred())
				ids := make([]string, 0, len(expenses))
				for _, e := range expenses {
					ids = append(ids, e.ID)
				}
				Expect(ids).To(Equal([]string{"b", "c", "a"}))
			})
		})
	})

	Describe("DeleteExpense", func() {
		It("should remove the expense", func() {
			Expect(db.SaveExpense(newExpense("expense-1", time.Now()))).To(Succeed())
			Expect(db.DeleteExpense("expense-1")).To(Succeed())

			_, err := db.GetExpense("expense-1")
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("returns a not found error for unknown ids", func() {
			Expect(db.DeleteExpense("missing")).To(MatchError(ErrNotFound))
		})
	})

	Describe("reopening the database", func() {
		It("should keep saved expenses", func() {
			Expect(db.SaveExpense(newExpense("expense-1", time.Now()))).To(Succeed())
			Expect(db.Close()).To(Succeed())

			var err error
			db, err = NewBoltDB(dbPath)
			Expect(err).NotTo(HaveOccurred())

			expense, err := db.GetExpense("expense-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(expense.ID).To(Equal("expense-1"))
		})
	})
})
