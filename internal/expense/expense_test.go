package expense

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("equalSplits", func() {
	sum := func(splits []Split) decimal.Decimal {
		total := decimal.Zero
		for _, s := range splits {
			total = total.Add(s.Amount)
		}
		return total
	}

	DescribeTable("splitting in whole cents",
		func(amount string, participants []string, expected []string) {
			splits := equalSplits(decimal.RequireFromString(amount), participants)
			Expect(splits).To(HaveLen(len(expected)))
			for i, s := range splits {
				Expect(s.Participant).To(Equal(participants[i]))
				Expect(s.Amount.StringFixed(2)).To(Equal(expected[i]))
			}
			Expect(sum(splits).Equal(decimal.RequireFromString(amount))).To(BeTrue())
		},
		Entry("even split", "45.00", []string{"a", "b", "c"}, []string{"15.00", "15.00", "15.00"}),
		Entry("one leftover cent", "10.00", []string{"a", "b", "c"}, []string{"3.34", "3.33", "3.33"}),
		Entry("two leftover cents", "0.05", []string{"a", "b", "c"}, []string{"0.02", "0.02", "0.01"}),
		Entry("single participant", "12.34", []string{"a"}, []string{"12.34"}),
		Entry("beyond int64 cents", "1e20", []string{"a", "b", "c"},
			[]string{"33333333333333333333.34", "33333333333333333333.33", "33333333333333333333.33"}),
		Entry("huge amount with cents", "92233720368547758.07", []string{"a", "b"},
			[]string{"46116860184273879.04", "46116860184273879.03"}),
	)

	It("should return nothing without participants", func() {
		Expect(equalSplits(decimal.RequireFromString("10"), nil)).To(BeEmpty())
	})
})
