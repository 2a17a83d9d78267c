package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath = "config.yml"

	// AppTokenEnv overrides app_token from the file.
	AppTokenEnv = "MESH_INBOX_APP_TOKEN"

	defaultDedupTTL    = 2 * time.Hour
	defaultQueueSize   = 64
	defaultInboxSize   = 100
	defaultNatsSubject = "mesh.inbox.text.incoming"
)

var ErrNotFound = errors.New("configuration file not found")

type Configuration struct {
	Broker        string      `yaml:"broker,omitempty"`
	Username      string      `yaml:"user,omitempty"`
	Password      string      `yaml:"password,omitempty"`
	RootTopic     string      `yaml:"root_topic,omitempty" validate:"required_with=Broker"`
	AppToken      string      `yaml:"app_token,omitempty" validate:"required"`
	RevokedTokens []string    `yaml:"revoked_tokens,omitempty"`
	DedupTTL      Duration    `yaml:"dedup_ttl,omitempty"`
	UDP           UDPConfig   `yaml:"udp"`
	NATS          NATSConfig  `yaml:"nats"`
	Hub           HubConfig   `yaml:"hub"`
	Inbox         InboxConfig `yaml:"inbox"`
}

type UDPConfig struct {
	Enabled bool `yaml:"enabled"`
}

type NATSConfig struct {
	URL     string `yaml:"url,omitempty" validate:"omitempty,url"`
	Subject string `yaml:"subject,omitempty"`
}

type HubConfig struct {
	QueueSize int `yaml:"queue_size,omitempty" validate:"gte=0"`
}

type InboxConfig struct {
	Capacity int `yaml:"capacity,omitempty" validate:"gte=0"`
}

// LoadEnv reads KEY=value pairs from path into the process environment.
// A missing file is not an error.
func LoadEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load reads the YAML configuration at path. When the file does not exist
// and interactive is set, the user is prompted and the answers are saved.
func Load(path string, interactive bool) (*Configuration, error) {
	config := &Configuration{}

	yamlFile, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && interactive:
		fmt.Println("Unable to load config")
		built, err := buildConfigPrompt()
		if err != nil {
			return nil, err
		}
		if err := Save(path, &built); err != nil {
			return nil, err
		}
		config = &built
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(yamlFile, config); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if token := os.Getenv(AppTokenEnv); token != "" {
		config.AppToken = token
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func Save(path string, config *Configuration) error {
	out, err := yaml.Marshal(config)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func (c *Configuration) applyDefaults() {
	if c.Broker != "" && !strings.Contains(c.Broker, "://") {
		c.Broker = "tcp://" + c.Broker
	}
	if c.DedupTTL <= 0 {
		c.DedupTTL = Duration(defaultDedupTTL)
	}
	if c.Hub.QueueSize == 0 {
		c.Hub.QueueSize = defaultQueueSize
	}
	if c.Inbox.Capacity == 0 {
		c.Inbox.Capacity = defaultInboxSize
	}
	if c.NATS.Subject == "" {
		c.NATS.Subject = defaultNatsSubject
	}
}

func (c *Configuration) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Broker != "" {
		if err := validateBroker(c.Broker); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}
	if c.Broker == "" && !c.UDP.Enabled {
		return errors.New("invalid configuration: no packet source, set broker or enable udp")
	}
	return nil
}

func validateBroker(input string) error {
	if !strings.Contains(input, "://") {
		input = "tcp://" + input
	}
	brokerURI, err := url.Parse(input)
	if err != nil {
		return err
	}
	if brokerURI.Scheme != "tcp" && brokerURI.Scheme != "ssl" && brokerURI.Scheme != "ws" {
		return errors.New("broker scheme must be one of tcp, ssl, or ws")
	}
	return nil
}
