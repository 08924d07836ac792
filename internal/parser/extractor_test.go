package parser

import (
	"testing"

	"github.com/maltedev/wholesale-finder/internal/config"
	"github.com/maltedev/wholesale-finder/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productPageHTML = `<!DOCTYPE html>
<html>
<head>
	<title>Wireless Earbuds</title>
	<script>window.stock = "out of stock";</script>
</head>
<body>
	<h1 class="product-title">Wireless Bluetooth Earbuds   Black!!</h1>
	<div class="price-box"><span class="price-now">US $8.99</span></div>
	<div class="store-info"><span class="seller-name">Shenzhen Audio Co.</span></div>
	<div class="rating-box"><span class="rating">4.7</span> <span>(1,234 reviews)</span></div>
	<p>Wholesale bulk price for resellers. 120 pieces available</p>
	<p>Free Shipping via DHL. Estimated delivery 7-15 days</p>
	<button>Add to Cart</button>
	<table class="bulk-price-table">
		<tr><th>Quantity</th><th>Price</th></tr>
		<tr><td>1-9 pieces</td><td>$8.99</td></tr>
		<tr><td>10+ pieces</td><td>$7.50</td></tr>
	</table>
	<table class="spec-table">
		<tr><td>Color</td><td>Black</td></tr>
		<tr><td>Bluetooth Version</td><td>5.3</td></tr>
	</table>
	<div class="gallery">
		<img src="https://img.dhgate.com/earbuds/1.jpg">
		<img data-src="https://img.dhgate.com/earbuds/2.jpg">
		<img src="https://img.dhgate.com/earbuds/1.jpg">
	</div>
</body>
</html>`

func TestExtractor_ProductPage(t *testing.T) {
	e := NewExtractor(config.DefaultSite())
	doc := mustParse(t, productPageHTML)

	price := e.ExtractPrice(doc)
	require.NotNil(t, price.Price)
	assert.Equal(t, 8.99, *price.Price)
	assert.Equal(t, "USD", price.Currency)
	assert.Equal(t, "US $8.99", price.OriginalText)
	assert.Empty(t, price.PriceRange)
	assert.Equal(t, []models.BulkTier{
		{Quantity: 1, Price: 8.99, OriginalText: "1-9 pieces: $8.99"},
		{Quantity: 10, Price: 7.50, OriginalText: "10+ pieces: $7.50"},
	}, price.BulkPricing)

	availability := e.ExtractAvailability(doc)
	assert.True(t, availability.Available)
	assert.Equal(t, models.StockInStock, availability.StockStatus)
	require.NotNil(t, availability.StockQuantity)
	assert.Equal(t, 120, *availability.StockQuantity)

	shipping := e.ExtractShipping(doc)
	require.NotNil(t, shipping)
	assert.True(t, shipping.FreeShipping)
	require.NotNil(t, shipping.Cost)
	assert.Zero(t, *shipping.Cost)
	assert.Equal(t, "7-15 days", shipping.DeliveryTime)
	assert.Equal(t, []string{"DHL"}, shipping.Methods)

	details := e.ExtractDetails(doc)
	assert.Equal(t, "Wireless Bluetooth Earbuds Black", details.Title)
	assert.Equal(t, "Shenzhen Audio Co.", details.Seller)
	require.NotNil(t, details.Rating)
	assert.Equal(t, 4.7, *details.Rating)
	require.NotNil(t, details.ReviewCount)
	assert.Equal(t, 1234, *details.ReviewCount)
	assert.Equal(t, []string{
		"https://img.dhgate.com/earbuds/1.jpg",
		"https://img.dhgate.com/earbuds/2.jpg",
	}, details.Images)
	assert.Equal(t, map[string]string{"Color": "Black", "Bluetooth Version": "5.3"}, details.Specifications)
}

func TestExtractor_PriceFallbacks(t *testing.T) {
	e := NewExtractor(config.DefaultSite())

	t.Run("unparseable selector falls through to page scan", func(t *testing.T) {
		doc := mustParse(t, `<html><body><h1>Earbuds</h1><span class="price">US $2.35 - $3.10 / piece</span></body></html>`)
		price := e.ExtractPrice(doc)
		require.NotNil(t, price.Price)
		assert.Equal(t, 2.35, *price.Price)
		assert.Equal(t, "US $2.35 - $3.10 / piece", price.PriceRange)
	})

	t.Run("page scan keeps the lowest value in band", func(t *testing.T) {
		doc := mustParse(t, `<html><body><p>Was $1,299.00 now $15.75, freight $20000 and $0.00 deposit</p></body></html>`)
		price := e.ExtractPrice(doc)
		require.NotNil(t, price.Price)
		assert.Equal(t, 15.75, *price.Price)
	})

	t.Run("bulk table when no dollar amounts", func(t *testing.T) {
		doc := mustParse(t, `<html><body><table class="bulk-table">
			<tr><td>50+</td><td>3.20</td></tr>
			<tr><td>10+</td><td>3.80</td></tr>
		</table></body></html>`)
		price := e.ExtractPrice(doc)
		require.NotNil(t, price.Price)
		assert.Equal(t, 3.20, *price.Price)
		assert.Len(t, price.BulkPricing, 2)
	})

	t.Run("nothing found", func(t *testing.T) {
		price := e.ExtractPrice(mustParse(t, `<html><body><p>Call us</p></body></html>`))
		assert.Nil(t, price.Price)
		assert.Equal(t, "USD", price.Currency)
	})

	t.Run("euro symbol", func(t *testing.T) {
		price := e.ExtractPrice(mustParse(t, `<html><body><span class="price">€19.90</span></body></html>`))
		require.NotNil(t, price.Price)
		assert.Equal(t, "EUR", price.Currency)
	})
}

func TestExtractor_Availability(t *testing.T) {
	e := NewExtractor(config.DefaultSite())

	soldOut := e.ExtractAvailability(mustParse(t, `<html><body><p>This item is SOLD OUT</p><button>Add to Cart</button></body></html>`))
	assert.False(t, soldOut.Available)
	assert.Equal(t, models.StockOutOfStock, soldOut.StockStatus)
	assert.Nil(t, soldOut.StockQuantity)

	plain := e.ExtractAvailability(mustParse(t, `<html><body><p>Nice earbuds</p></body></html>`))
	assert.False(t, plain.Available)
	assert.Equal(t, models.StockUnknown, plain.StockStatus)

	noButton := e.ExtractAvailability(mustParse(t, `<html><body><h1>Earbuds</h1><span class="price">$5</span><p>Contact seller for details</p></body></html>`))
	assert.False(t, noButton.Available)
	assert.Equal(t, models.StockUnknown, noButton.StockStatus)

	buyable := e.ExtractAvailability(mustParse(t, `<html><body><h1>Earbuds</h1><button>Buy Now</button></body></html>`))
	assert.True(t, buyable.Available)
	assert.Equal(t, models.StockInStock, buyable.StockStatus)
}

func TestExtractor_Shipping(t *testing.T) {
	e := NewExtractor(config.DefaultSite())

	paid := e.ExtractShipping(mustParse(t, `<html><body><p>Shipping: $4.99 to United States by EMS or China Post</p><p>Arrives in 12 business days</p></body></html>`))
	require.NotNil(t, paid)
	assert.False(t, paid.FreeShipping)
	require.NotNil(t, paid.Cost)
	assert.Equal(t, 4.99, *paid.Cost)
	assert.Equal(t, "12 days", paid.DeliveryTime)
	assert.Equal(t, []string{"EMS", "China Post"}, paid.Methods)

	assert.Nil(t, e.ExtractShipping(mustParse(t, `<html><body><p>Great sound</p></body></html>`)))

	// carrier codes only match as whole words
	assert.Nil(t, e.ExtractShipping(mustParse(t, `<html><body><p>Popular with groups</p></body></html>`)))
}

func TestExtractor_SellerFallback(t *testing.T) {
	e := NewExtractor(config.DefaultSite())
	doc := mustParse(t, `<html><body><a href="/store/1">Visit Store: Audio World</a></body></html>`)
	assert.Equal(t, "Visit Store Audio World", e.ExtractDetails(doc).Seller)
}

func TestExtractor_MalformedHTML(t *testing.T) {
	e := NewExtractor(config.DefaultSite())
	doc := mustParse(t, `<div><span class="price">$5<table class="spec"><tr><td>Only one cell`)

	assert.NotPanics(t, func() {
		e.ExtractPrice(doc)
		e.ExtractAvailability(doc)
		e.ExtractShipping(doc)
		e.ExtractDetails(doc)
	})
}

func TestFirstMatch(t *testing.T) {
	doc := mustParse(t, `<html><body><div class="b">beta</div><div class="c">gamma</div></body></html>`)
	strategies := SelectorStrategies([]string{".a", ".b", ".c"}, nonEmptyText)

	value, name, ok := FirstMatch(doc, strategies...)
	require.True(t, ok)
	assert.Equal(t, "beta", value)
	assert.Equal(t, ".b", name)

	_, _, ok = FirstMatch(doc, SelectorStrategies([]string{".missing", "[invalid"}, nonEmptyText)...)
	assert.False(t, ok)
}
