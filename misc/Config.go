package misc

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Init loads configuration from config.yaml in the working directory (if
// present) and from environment variables (MODELRELAY_LLM_BASE_URL maps to
// llm.BASE_URL, and so on). Call once at startup; all getters work off the
// same viper instance afterwards.
func Init() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("modelrelay")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("config.yaml not found, relying on environment variables: %v", err)
	}
}

// GetConfigValueRequired reads a config value. It aborts the process if the
// value is empty or missing — startup-time configuration only.
func GetConfigValueRequired(section, key string) string {
	value := strings.TrimSpace(viper.GetString(section + "." + key))
	if value == "" {
		log.Fatalf("missing required config %s.%s", section, key)
	}
	return value
}

// GetConfigValueDefault reads a config value, returning defaultValue when
// the key is missing or empty.
func GetConfigValueDefault(section, key string, defaultValue string) string {
	value := strings.TrimSpace(viper.GetString(section + "." + key))
	if value == "" {
		return defaultValue
	}
	return value
}
