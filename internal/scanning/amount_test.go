package scanning

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParseAmount", func() {
	DescribeTable("finding the total in OCR text",
		func(text, expected string) {
			amount := ParseAmount(text)
			Expect(amount.Valid).To(BeTrue())
			Expect(amount.Decimal.StringFixed(2)).To(Equal(expected))
		},
		Entry("largest total wins", "total: $12.50 subtotal 5.00 total: $45.00", "45.00"),
		Entry("case insensitive keyword", "TOTAL $22.75", "22.75"),
		Entry("amount keyword", "Amount: 8.40", "8.40"),
		Entry("dollar prefix", "Coffee $3.50\nMuffin $2.25", "3.50"),
		Entry("dollar suffix", "Paid 14,90 $", "14.90"),
		Entry("sum keyword", "Sum: 31.00", "31.00"),
		Entry("due keyword", "Balance due 64.10", "64.10"),
		Entry("comma decimal separator", "Total 12,75", "12.75"),
		Entry("non-breaking space after the keyword", "Total:\u00a012.50", "12.50"),
		Entry("vertical tab before the figure", "AMOUNT\v$7.10", "7.10"),
		Entry("total outranks a larger dollar figure", "Cash $100.00\nTotal: $42.10", "42.10"),
	)

	It("uses the dollar pattern before due", func() {
		amount := ParseAmount("$19.99 due")
		Expect(amount.Valid).To(BeTrue())
		Expect(amount.Decimal.StringFixed(2)).To(Equal("19.99"))
	})

	When("the text has no amounts", func() {
		It("should return an absent amount", func() {
			Expect(ParseAmount("thank you for shopping").Valid).To(BeFalse())
		})
	})

	When("the text is empty", func() {
		It("should return an absent amount", func() {
			Expect(ParseAmount("").Valid).To(BeFalse())
		})
	})

	When("numbers lack two decimal places", func() {
		It("should return an absent amount", func() {
			Expect(ParseAmount("Table 12 Guests 4").Valid).To(BeFalse())
		})
	})
})
