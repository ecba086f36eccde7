// Package config loads the backtesting core's env-driven configuration
// surface, following the teacher's Load()'s getEnv/getEnvBool/getEnvInt
// helper pattern.
package config

import (
	"os"
	"strconv"
	"time"
)

// MatchingConfig configures the matching engine's fee schedule and
// self-trade-prevention policy.
type MatchingConfig struct {
	MakerFeeBps int
	TakerFeeBps int
	Stp         string // "cancel_newest" | "cancel_oldest" | "cancel_both" | "decrement_and_cancel"
}

// BacktestConfig is the env-driven configuration surface for the
// backtesting core, loaded the same way Load() builds the live bot's
// Config: getEnv/getEnvBool/getEnvInt helpers, sensible defaults.
type BacktestConfig struct {
	DatabasePath       string
	ProductionGrade    bool
	OmsParityMode      string // "full" | "relaxed" | "bypass"
	VenueProfile       string // "default" | "polymarket"
	RiskProfile        string // "default" | "conservative" | "aggressive"
	KellyProfile       string // "default" | "conservative" | "moderate" | "aggressive"
	TieGoesToDown      bool
	StrictAccounting   bool
	Matching           MatchingConfig
	Bankroll           float64
	TradingAsset       string
	SettlementCooldown time.Duration

	// Optional collaborators: a run never requires these, matching the
	// core's treatment of notification and wallet identity as external
	// collaborators rather than required dependencies.
	TelegramBotToken string
	TelegramChatID    int64
	FundingWallet     string
}

func LoadBacktestConfig() (*BacktestConfig, error) {
	cfg := &BacktestConfig{
		DatabasePath:       getEnv("BACKTEST_DB_PATH", "data/backtestcore.db"),
		ProductionGrade:    getEnvBool("PRODUCTION_GRADE", false),
		OmsParityMode:      getEnv("OMS_PARITY_MODE", "full"),
		VenueProfile:       getEnv("VENUE_PROFILE", "polymarket"),
		RiskProfile:        getEnv("RISK_PROFILE", "default"),
		KellyProfile:       getEnv("KELLY_PROFILE", "default"),
		TieGoesToDown:      getEnvBool("TIE_GOES_TO_DOWN", false),
		StrictAccounting:   getEnvBool("STRICT_ACCOUNTING", true),
		Bankroll:           getEnvFloat("BANKROLL_F", 1000.0),
		TradingAsset:       getEnv("TRADING_ASSET", "BTC"),
		SettlementCooldown: getEnvDuration("SETTLEMENT_COOLDOWN", 0),
		Matching: MatchingConfig{
			MakerFeeBps: getEnvInt("MAKER_FEE_BPS", 0),
			TakerFeeBps: getEnvInt("TAKER_FEE_BPS", 200),
			Stp:         getEnv("STP_MODE", "cancel_newest"),
		},
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		FundingWallet:    os.Getenv("FUNDING_WALLET_ADDRESS"),
	}
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
			cfg.TelegramChatID = id
		}
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
