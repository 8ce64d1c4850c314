package tableparse

import (
	"errors"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

func TestTableParse(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "TableParse Suite")
}

const distributorHeader = "BRAND PACK SIZE PRICE ORDERED CONFIRMED STATUS"

var _ = Describe("Parser", func() {
	var (
		parser *Parser
		opts   []Option
		text   string
		res    Result
	)

	BeforeEach(func() {
		opts = nil
	})

	JustBeforeEach(func() {
		parser = NewParser(nil, opts...)
		res = parser.Parse(text)
	})

	When("a six column header is followed by a six value line", func() {
		BeforeEach(func() {
			text = distributorHeader + "\nHeinz 18/12OZ 31.77 2 2 Shipped"
		})

		It("produces one record keyed by normalized header names", func() {
			Expect(res.Records).To(HaveLen(1))
			rec := res.Records[0]
			Expect(rec.Keys()).To(Equal([]string{"brand", "pack_size", "price", "ordered", "confirmed", "status"}))
			Expect(rec.Values()).To(Equal([]string{"Heinz", "18/12OZ", "31.77", "2", "2", "Shipped"}))
		})

		It("does not attach a date when the document has none", func() {
			Expect(res.Records[0].Has("date")).To(BeFalse())
		})
	})

	When("data lines fill four or five of six columns", func() {
		BeforeEach(func() {
			text = distributorHeader + "\nHeinz 18/12OZ 31.77 2\nKraft 24CT 12.00 1 1"
		})

		It("rejects four and accepts five", func() {
			Expect(res.Records).To(HaveLen(1))
			Expect(res.Records[0].Text("brand")).To(Equal("Kraft"))
			Expect(res.Records[0].Len()).To(Equal(5))
			Expect(res.Rejected).To(Equal(1))
		})
	})

	When("the acceptance ratio is lowered", func() {
		BeforeEach(func() {
			opts = []Option{WithMinFieldRatio(0.5)}
			text = distributorHeader + "\nHeinz 18/12OZ 31.77"
		})

		It("accepts sparser lines", func() {
			Expect(res.Records).To(HaveLen(1))
		})
	})

	When("a line has more values than columns", func() {
		BeforeEach(func() {
			text = distributorHeader + "\nHeinz 18/12OZ 31.77 2 2 Shipped late"
		})

		It("drops the extras", func() {
			Expect(res.Records[0].Len()).To(Equal(6))
			Expect(res.Records[0].Text("status")).To(Equal("Shipped"))
		})
	})

	When("headers repeat", func() {
		BeforeEach(func() {
			text = "Brand Bin Size\n" + distributorHeader + "\n" +
				"Heinz 18/12OZ 31.77 2 2 Shipped\n" +
				"Item Qty Price\n" +
				"Mustard 2 3.50"
		})

		It("lets the latest header govern following lines", func() {
			Expect(res.HeaderLines).To(Equal(3))
			Expect(res.Records).To(HaveLen(2))
			Expect(res.Records[1].Keys()).To(Equal([]string{"item", "qty", "price"}))
		})

		It("never emits a header line as a record", func() {
			for _, r := range res.Records {
				Expect(r.Text("brand")).NotTo(Equal("BRAND"))
				Expect(r.Text("item")).NotTo(Equal("Item"))
			}
		})
	})

	When("the document carries a delivery date", func() {
		BeforeEach(func() {
			text = "Delivery date: 10/04/2024\n" + distributorHeader + "\nHeinz 18/12OZ 31.77 2 2 Shipped\n" +
				"Brand Bin Date\nKraft A1 09/30/2024"
		})

		It("attaches it to records without a date", func() {
			Expect(res.Records[0].Text("date")).To(Equal("10/04/2024"))
		})

		It("keeps a record's own date", func() {
			Expect(res.Records[1].Text("date")).To(Equal("09/30/2024"))
		})
	})

	When("no header is found", func() {
		BeforeEach(func() {
			text = "884043 Mustard Yellow Upside Down Heinz 18/12 OZ $31.77 2 0 Out of stock"
		})

		It("signals an empty structural parse", func() {
			Expect(res.Empty()).To(BeTrue())
			Expect(errors.Is(res.Err(), common.ErrStructuralParseEmpty)).To(BeTrue())
			Expect(res.Records).NotTo(BeNil())
		})
	})

	It("is reentrant across documents", func() {
		p := NewParser(nil)
		first := p.ParseRows(distributorHeader + "\nHeinz 18/12OZ 31.77 2 2 Shipped")
		second := p.ParseRows("Heinz 18/12OZ 31.77 2 2 Shipped")
		Expect(first).To(HaveLen(1))
		Expect(second).To(BeEmpty())
	})
})

var _ = Describe("ParseCells", func() {
	It("uses each cell as one value", func() {
		res := NewParser(nil).ParseCells([][]string{
			{"Brand", "Pack Size", "Price", "Ordered", "Confirmed", "Status"},
			{"Jack Daniels", "12/750 ML", "$31.77", "2", "0", "Out of stock"},
		})
		Expect(res.HeaderLines).To(Equal(1))
		Expect(res.Records).To(HaveLen(1))
		rec := res.Records[0]
		Expect(rec.Keys()).To(Equal([]string{"brand", "pack_size", "price", "ordered", "confirmed", "status"}))
		Expect(rec.Text("brand")).To(Equal("Jack Daniels"))
		Expect(rec.Text("status")).To(Equal("Out of stock"))
	})

	It("keeps columns aligned across blank cells", func() {
		res := NewParser(nil).ParseCells([][]string{
			{"Brand", "", "Price", "Ordered", "Confirmed", "Status"},
			{"Heinz", "", "$31.77", "2", "", "Shipped"},
			{"", "", "", ""},
		})
		Expect(res.Records).To(HaveLen(1))
		rec := res.Records[0]
		Expect(rec.Keys()).To(Equal([]string{"brand", "price", "ordered", "status"}))
		Expect(rec.Text("status")).To(Equal("Shipped"))
	})

	It("applies the fill ratio to non-blank cells", func() {
		res := NewParser(nil).ParseCells([][]string{
			{"Brand", "Pack Size", "Price", "Ordered", "Confirmed", "Status"},
			{"Heinz", "", "$31.77", "", "", "Shipped"},
		})
		Expect(res.Records).To(BeEmpty())
		Expect(res.Rejected).To(Equal(1))
	})

	It("attaches the document date", func() {
		res := NewParser(nil).ParseCells([][]string{
			{"Delivery date:", "10/04/2024"},
			{"Brand", "Price"},
			{"Heinz", "$31.77"},
		})
		Expect(res.Records).To(HaveLen(1))
		Expect(res.Records[0].Text("date")).To(Equal("10/04/2024"))
	})
})

var _ = Describe("fill ratio", func() {
	It("accepts a line filling exactly a configured non-default share", func() {
		p := NewParser(nil, WithMinFieldRatio(0.55))
		Expect(p.accept(11, 20)).To(BeTrue())
		Expect(p.accept(10, 20)).To(BeFalse())
	})

	It("compares the floor percentage", func() {
		p := NewParser(nil)
		Expect(p.accept(7, 10)).To(BeTrue())
		Expect(p.accept(13, 19)).To(BeFalse())
		Expect(p.accept(5, 6)).To(BeTrue())
	})
})

var _ = Describe("header keys", func() {
	It("normalizes tokens", func() {
		Expect(Key("Ext.Value")).To(Equal("ext_value"))
		Expect(Key("Unit Cost")).To(Equal("unit_cost"))
	})

	It("suffixes duplicates", func() {
		h := newHeader(HeaderRule{Name: "x"}, "Qty Price Qty")
		Expect(h.Keys).To(Equal([]string{"qty", "price", "qty_2"}))
	})
})

var _ = Describe("RulesFromSpecs", func() {
	It("falls back to the defaults", func() {
		rules, err := RulesFromSpecs(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(rules).To(HaveLen(2))
		Expect(rules[0].Name).To(Equal("distributor"))
		Expect(rules[1].Name).To(Equal("inventory"))
	})

	It("tries rules in declared order", func() {
		rules, err := RulesFromSpecs([]common.HeaderRuleSpec{
			{Name: "costed", Pattern: "unit cost", Columns: []string{"Unit Cost"}},
			{Name: "plain", Pattern: "brand|cost"},
		})
		Expect(err).NotTo(HaveOccurred())

		recs := NewParser(rules).ParseRows("Brand Unit Cost\nHeinz 31.77")
		Expect(recs).To(HaveLen(1))
		Expect(recs[0].Keys()).To(Equal([]string{"brand", "unit_cost"}))
	})

	It("matches case-insensitively", func() {
		rules, err := RulesFromSpecs([]common.HeaderRuleSpec{{Pattern: "SKU"}})
		Expect(err).NotTo(HaveOccurred())
		Expect(rules[0].Name).To(Equal("rule-1"))
		Expect(rules[0].Pattern.MatchString("sku desc")).To(BeTrue())
	})

	It("reports invalid patterns as configuration errors", func() {
		_, err := RulesFromSpecs([]common.HeaderRuleSpec{{Name: "bad", Pattern: "("}})
		Expect(common.CodeOf(err)).To(Equal(common.CodeConfig))
	})
})
