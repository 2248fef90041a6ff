package config

type PaymentConfig struct {
	Provider string          `yaml:"provider"`
	Stripe   *StripeConfig   `yaml:"stripe"`
	Razorpay *RazorpayConfig `yaml:"razorpay"`
	Currency string          `yaml:"currency"`
	// VerifyPurchases gates the VIP ledger behind a server-side payment check.
	VerifyPurchases bool `yaml:"verify_purchases"`
}

type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
}

type RazorpayConfig struct {
	KeyID     string `yaml:"key_id"`
	KeySecret string `yaml:"key_secret"`
	Webhook   string `yaml:"webhook_secret"`
}

func loadPaymentConfig() *PaymentConfig {
	return &PaymentConfig{
		Provider: getEnv("PAYMENT_PROVIDER", "stripe"),
		Stripe: &StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		},
		Razorpay: &RazorpayConfig{
			KeyID:     getEnv("RAZORPAY_KEY_ID", ""),
			KeySecret: getEnv("RAZORPAY_KEY_SECRET", ""),
			Webhook:   getEnv("RAZORPAY_WEBHOOK_SECRET", ""),
		},
		Currency:        getEnv("PAYMENT_CURRENCY", "USD"),
		VerifyPurchases: getEnvAsBool("PAYMENT_VERIFY_PURCHASES", true),
	}
}
