package heuristic

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/dates"
)

func TestHeuristic(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Heuristic Suite")
}

const heinzLine = "884043 Mustard Yellow Upside Down Heinz 18/12 OZ $31.77 2 0 Out of stock"

var _ = Describe("Extractor", func() {
	var (
		ex    *Extractor
		text  string
		items []LineItem
	)

	BeforeEach(func() {
		ex = NewExtractor(constants.NewCategorizer(nil), nil)
	})

	JustBeforeEach(func() {
		items = ex.Extract(text)
	})

	When("given the distributor line without a header", func() {
		BeforeEach(func() {
			text = heinzLine
		})

		It("extracts it through the price-token strategy", func() {
			Expect(items).To(HaveLen(1))
			it := items[0]
			Expect(it.Strategy).To(Equal(StrategyPrice))
			Expect(it.Name).To(ContainSubstring("Mustard Yellow Upside Down Heinz"))
			Expect(it.Name).NotTo(ContainSubstring("$31.77"))
			Expect(it.Price).To(Equal(31.77))
			Expect(it.Quantity).To(Equal(1.0))
			Expect(it.Total).To(Equal(31.77))
			Expect(it.Category).To(Equal(constants.Food))
			Expect(it.PackSize).To(ContainSubstring("18"))
			Expect(it.PackSize).To(ContainSubstring("oz"))
			Expect(it.Date).To(Equal(dates.Unknown))
		})

		It("converts to the fixed record shape", func() {
			rec := items[0].Record()
			Expect(rec.Keys()).To(Equal([]string{"name", "quantity", "price", "total", "date", "category", "packSize"}))
			Expect(rec.Text("category")).To(Equal("food"))
			Expect(rec.Text("packSize")).To(Equal("18/12oz"))
		})
	})

	When("a line has name, quantity, price and total", func() {
		BeforeEach(func() {
			text = "Delivered: 10/04/2024\nJack Daniels Whiskey 750ml 2 24.99 49.98"
		})

		It("takes all four from the line", func() {
			Expect(items).To(HaveLen(1))
			it := items[0]
			Expect(it.Strategy).To(Equal(StrategyFullLine))
			Expect(it.Name).To(Equal("Jack Daniels Whiskey 750ml"))
			Expect(it.Quantity).To(Equal(2.0))
			Expect(it.Price).To(Equal(24.99))
			Expect(it.Total).To(Equal(49.98))
			Expect(it.Category).To(Equal(constants.Alcohol))
			Expect(it.PackSize).To(Equal("750ml"))
			Expect(it.Date).To(Equal("10/04/2024"))
		})
	})

	When("the line states a quantity", func() {
		BeforeEach(func() {
			text = "Russet Potatoes $4.25 qty: 3\nOlive Oil 6 units $10.10"
		})

		It("computes the total from price and quantity", func() {
			Expect(items).To(HaveLen(2))
			Expect(items[0].Quantity).To(Equal(3.0))
			Expect(items[0].Total).To(Equal(12.75))
			Expect(items[1].Quantity).To(Equal(6.0))
			Expect(items[1].Total).To(Equal(60.6))
		})
	})

	When("the pack size sits on the next line", func() {
		BeforeEach(func() {
			text = "Cheddar Block $5.99\n  per case 12 LB"
		})

		It("borrows it", func() {
			Expect(items).To(HaveLen(1))
			Expect(items[0].PackSize).To(Equal("12lb"))
		})
	})

	When("lines are administrative noise or carry no price", func() {
		BeforeEach(func() {
			text = "Invoice #INV-42 $10.00\nCustomer: Bob\nSubtotal $9.00\nTax $1.00\nPage 1 of 2\nThank you 2024"
		})

		It("skips them", func() {
			Expect(items).To(BeEmpty())
			Expect(items).NotTo(BeNil())
		})
	})

	It("returns records", func() {
		recs := ex.Records("Ketchup $2.00")
		Expect(recs).To(HaveLen(1))
		Expect(recs[0].Text("packSize")).To(Equal(DefaultPackSize))
	})

	It("honors overridden keywords", func() {
		custom := NewExtractor(constants.NewCategorizer([]string{"ketchup"}), nil)
		Expect(custom.Extract("Ketchup $2.00")[0].Category).To(Equal(constants.Alcohol))
	})
})

var _ = Describe("ExtractMeta", func() {
	It("reads invoice number, vendor and stated total", func() {
		m := ExtractMeta("Vendor: Acme Foods LLC\nInvoice #INV-2024-001\nSubtotal: $10.00\nTotal: $1,012.50\n")
		Expect(m.InvoiceNumber).To(Equal("INV-2024-001"))
		Expect(m.Vendor).To(Equal("Acme Foods LLC"))
		Expect(m.StatedTotal).NotTo(BeNil())
		Expect(*m.StatedTotal).To(Equal(1012.5))
	})

	It("reads a comma decimal total", func() {
		m := ExtractMeta("Grand Total: €12,50")
		Expect(*m.StatedTotal).To(Equal(12.5))
	})

	It("is zero when nothing is printed", func() {
		Expect(ExtractMeta("Heinz $1.00").IsZero()).To(BeTrue())
	})
})
