package config

import "time"

const (
	desktopUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	mobileUserAgent  = "Mozilla/5.0 (iPhone; CPU iPhone OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1"
)

// Default returns the DHgate configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    10 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
			AllowedOrigins:  []string{"http://localhost:*", "https://localhost:*"},
			QueueSize:       100,
		},
		Site:    DefaultSite(),
		Ranking: DefaultRanking(),
		Amazon: AmazonConfig{
			BaseURL:           "https://api.rainforestapi.com/request",
			Domain:            "amazon.com",
			RequestsPerSecond: 1,
			Timeout:           30 * time.Second,
		},
		Shopping: ShoppingConfig{
			BaseURL:           "https://serpapi.com/search.json",
			Location:          "Boston,Massachusetts,United States of America",
			Country:           "us",
			Language:          "en",
			RequestsPerSecond: 1,
			Timeout:           30 * time.Second,
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Stream: "stream:wholesale_finder:progress",
		},
		Browser: BrowserConfig{
			Headless:       true,
			Timeout:        30 * time.Second,
			ViewportWidth:  1920,
			ViewportHeight: 1080,
			Locale:         "en-US",
			TimezoneID:     "America/New_York",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func DefaultSite() SiteConfig {
	return SiteConfig{
		Name:            "dhgate",
		BaseURL:         "https://www.dhgate.com",
		MobileBaseURL:   "https://m.dhgate.com",
		DefaultCurrency: "USD",
		Headers: map[string]string{
			"User-Agent":                desktopUserAgent,
			"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8",
			"Accept-Language":           "en-US,en;q=0.9",
			"Cache-Control":             "no-cache",
			"Pragma":                    "no-cache",
			"Sec-Fetch-Dest":            "document",
			"Sec-Fetch-Mode":            "navigate",
			"Sec-Fetch-Site":            "none",
			"Sec-Fetch-User":            "?1",
			"Upgrade-Insecure-Requests": "1",
		},
		MobileHeaders: map[string]string{
			"User-Agent":      mobileUserAgent,
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
		},

		Timeout:      30 * time.Second,
		RequestDelay: 3 * time.Second,
		ProductDelay: 3 * time.Second,
		VariantDelay: 2 * time.Second,
		WarmupDelay:  time.Second,
		MinInterval:  3 * time.Second,
		JitterMin:    500 * time.Millisecond,
		JitterMax:    2 * time.Second,

		MaxCategoryDepth:        3,
		ListingDensityThreshold: 5,
		MaxSearchResults:        10,
		MinPrice:                0.01,
		MaxPrice:                10000,

		Selectors: SelectorConfig{
			Price: []string{
				".price-now", ".price-current", ".product-price", ".price",
				`[data-testid="price"]`, ".pricenow", ".now-price", ".unit-price",
				".current-price", ".sale-price", ".final-price",
			},
			Title: []string{
				"h1", ".product-title", ".title", `[data-testid="product-title"]`,
				".product-name", ".item-title", ".goods-title", ".product-info h1",
			},
			Seller: []string{
				".seller-name", ".store-name", `[data-testid="seller-name"]`,
				".shop-name", ".supplier-name",
			},
			Image: []string{
				".product-image img", ".gallery img", ".image-gallery img",
				".product-photos img", ".main-image img", ".goods-image img",
			},
			ProductLink: []string{
				`a[href*="/product/"]`, ".pic a", ".product-title a",
				".item-img a", ".product-item a", ".goods-item a",
			},
		},
		Phrases: PhraseConfig{
			Error: []string{
				"page not found", "error 404", "page does not exist",
				"sorry, the page you are looking for", "product not found",
				"item not found", "access denied", "blocked", "temporarily unavailable",
			},
			OutOfStock: []string{
				"out of stock", "sold out", "not available", "unavailable",
				"temporarily unavailable", "stock: 0", "quantity: 0", "discontinued",
			},
			BulkPricing: []string{
				"bulk price", "wholesale", "quantity discount", "piece price",
			},
			ContactSeller: []string{
				"contact seller", "email for price", "request quote", "inquiry",
			},
		},
		ShippingMethods: []string{
			"dhl", "fedex", "ups", "usps", "ems", "china post",
			"standard shipping", "express shipping", "economy shipping",
		},
	}
}

func DefaultRanking() RankingConfig {
	return RankingConfig{
		WordOverlapWeight:    30,
		FeatureOverlapWeight: 40,
		PriceWeight:          20,
		AvailabilityWeight:   10,
		MaxScore:             100,
		FullCreditPrice:      50,
		HalfCreditPrice:      100,
		DuplicateThreshold:   0.8,
		KeyFeatures:          []string{"bluetooth", "wireless", "usb", "led", "smart", "portable"},
		SearchedVariants:     3,
		ResultsPerVariant:    5,
		MinVariantLength:     4,
	}
}
