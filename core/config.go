package core

import (
	"fmt"
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Debug    bool
	TestMode bool
	Env      string
	AppName  string
	Build    string
	WorkDir  string

	// ReviewerFanOut is the number of distinct reviewers assigned per answer.
	ReviewerFanOut int

	Server struct {
		Host   string
		Port   int
		Secret string
	}

	Database struct {
		Name string
	}

	RollbarToken     string
	SendgridApiKey   string
	DefaultFromEmail mail.Address
	OperatorEmail    mail.Address
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Peerbot")
	v.SetDefault("reviewerFanOut", 2)
	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverPort", 8000)
	v.SetDefault("serverSecret", "h2qa-frm)wnb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("databaseName", "peerbot.db")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("operatorEmail", "")

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Debug:          v.GetBool("debug"),
		TestMode:       v.GetBool("testMode"),
		Env:            env,
		AppName:        v.GetString("appName"),
		Build:          v.GetString("build"),
		WorkDir:        wd,
		ReviewerFanOut: v.GetInt("reviewerFanOut"),
		RollbarToken:   v.GetString("rollbarToken"),
		SendgridApiKey: v.GetString("sendgridApiKey"),
	}
	conf.Server.Host = v.GetString("serverHost")
	conf.Server.Port = v.GetInt("serverPort")
	conf.Server.Secret = v.GetString("serverSecret")
	conf.Database.Name = v.GetString("databaseName")
	conf.DefaultFromEmail = mail.Address{Name: conf.AppName, Address: v.GetString("defaultFromEmail")}
	conf.OperatorEmail = mail.Address{Address: v.GetString("operatorEmail")}
	return conf
}
