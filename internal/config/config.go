package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port     string
		LogLevel string
	}
	Offers struct {
		BaseURL    string
		TimeoutSec int
	}
	LLM struct {
		APIKey  string
		Model   string
		BaseURL string
	}
	Transcribe struct {
		APIKey  string
		Model   string
		BaseURL string
	}
	Dialer struct {
		AccountSID string
		AuthToken  string
		FromNumber string
		ToNumber   string
		BaseURL    string
	}
	Channel struct {
		TokenSecret   string
		TokenTTLMin   int
		TokenSkewSecs int
	}
	Agent struct {
		EscalationReason string
	}
}

func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("offers.base_url", "http://localhost:8090")
	v.SetDefault("offers.timeout_sec", 5)

	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")

	v.SetDefault("transcribe.model", "whisper-1")
	v.SetDefault("transcribe.base_url", "https://api.openai.com/v1")

	v.SetDefault("dialer.base_url", "https://api.twilio.com/2010-04-01")

	v.SetDefault("channel.token_ttl_min", 60)
	v.SetDefault("channel.token_skew_secs", 30)

	v.SetDefault("agent.escalation_reason", "Customer requested a human agent during the upsell flow")

	// Map envs
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.log_level", "LOG_LEVEL")

	v.BindEnv("offers.base_url", "OFFER_SOURCE_URL")
	v.BindEnv("offers.timeout_sec", "OFFER_SOURCE_TIMEOUT_SEC")

	v.BindEnv("llm.api_key", "OPENAI_API_KEY")
	v.BindEnv("llm.model", "LLM_MODEL")
	v.BindEnv("llm.base_url", "LLM_BASE_URL")

	v.BindEnv("transcribe.api_key", "TRANSCRIBE_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("transcribe.model", "TRANSCRIBE_MODEL")
	v.BindEnv("transcribe.base_url", "TRANSCRIBE_BASE_URL")

	v.BindEnv("dialer.account_sid", "TWILIO_ACCOUNT_SID")
	v.BindEnv("dialer.auth_token", "TWILIO_AUTH_TOKEN")
	v.BindEnv("dialer.from_number", "TWILIO_FROM_NUMBER")
	v.BindEnv("dialer.to_number", "TWILIO_TO_NUMBER")
	v.BindEnv("dialer.base_url", "TWILIO_BASE_URL")

	v.BindEnv("channel.token_secret", "CHANNEL_TOKEN_SECRET")
	v.BindEnv("channel.token_ttl_min", "CHANNEL_TOKEN_TTL_MIN")
	v.BindEnv("channel.token_skew_secs", "CHANNEL_TOKEN_SKEW_SECS")

	v.BindEnv("agent.escalation_reason", "ESCALATION_REASON")

	var c Config
	c.Server.Port = toString(v.Get("server.port"))
	c.Server.LogLevel = v.GetString("server.log_level")

	c.Offers.BaseURL = v.GetString("offers.base_url")
	c.Offers.TimeoutSec = v.GetInt("offers.timeout_sec")

	c.LLM.APIKey = v.GetString("llm.api_key")
	c.LLM.Model = v.GetString("llm.model")
	c.LLM.BaseURL = v.GetString("llm.base_url")

	c.Transcribe.APIKey = v.GetString("transcribe.api_key")
	c.Transcribe.Model = v.GetString("transcribe.model")
	c.Transcribe.BaseURL = v.GetString("transcribe.base_url")

	c.Dialer.AccountSID = v.GetString("dialer.account_sid")
	c.Dialer.AuthToken = v.GetString("dialer.auth_token")
	c.Dialer.FromNumber = v.GetString("dialer.from_number")
	c.Dialer.ToNumber = v.GetString("dialer.to_number")
	c.Dialer.BaseURL = v.GetString("dialer.base_url")

	c.Channel.TokenSecret = v.GetString("channel.token_secret")
	c.Channel.TokenTTLMin = v.GetInt("channel.token_ttl_min")
	c.Channel.TokenSkewSecs = v.GetInt("channel.token_skew_secs")

	c.Agent.EscalationReason = v.GetString("agent.escalation_reason")

	return c
}

func toString(v any) string { return fmt.Sprint(v) }
