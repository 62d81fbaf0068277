package config

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	DBURL              string
	RedisAddr          string
	MQTTBroker         string
	MQTTClientID       string
	LogLevel           string
	JWTSecret          string
	HTTPAddr           string
	MDNSLocalName      string
	TariffFallbackRate float64
	UndoWindowHours    int
}

// LoadConfig reads configuration from file, .env, or env vars
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("CONFIG: no .env file loaded:", err)
	}

	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetDefault("HTTP_ADDR", ":5069")
	viper.SetDefault("MQTT_CLIENT_ID", "homewatt-backend")
	viper.SetDefault("MDNS_LOCAL_NAME", "homewatt.local")
	viper.SetDefault("TARIFF_FALLBACK_RATE", 0.15)
	viper.SetDefault("UNDO_WINDOW_HOURS", 24)

	cfg := &Config{
		DBURL:              viper.GetString("DB_URL"),
		RedisAddr:          viper.GetString("REDIS_ADDR"),
		MQTTBroker:         viper.GetString("MQTT_BROKER"),
		MQTTClientID:       viper.GetString("MQTT_CLIENT_ID"),
		LogLevel:           viper.GetString("LOG_LEVEL"),
		JWTSecret:          viper.GetString("JWT_SECRET"),
		HTTPAddr:           viper.GetString("HTTP_ADDR"),
		MDNSLocalName:      viper.GetString("MDNS_LOCAL_NAME"),
		TariffFallbackRate: viper.GetFloat64("TARIFF_FALLBACK_RATE"),
		UndoWindowHours:    viper.GetInt("UNDO_WINDOW_HOURS"),
	}
	return cfg, nil
}
