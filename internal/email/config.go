package email

import "fmt"

// Config holds the outbound notification settings. It is embedded in the
// top-level config under the "email" YAML key.
type Config struct {
	SMTP SMTPConfig `yaml:"smtp"`

	// From is the sender address, e.g. "VitaRoute <alerts@example.com>".
	From string `yaml:"from"`

	// ReceiverOverride, when set, replaces every model-chosen recipient.
	// Deployments use it to pin notifications to one mailbox.
	ReceiverOverride string `yaml:"receiver_override"`

	// BccOwner receives a blind copy of every notification.
	BccOwner string `yaml:"bcc_owner"`
}

// SMTPConfig holds SMTP server connection parameters.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// StartTLS upgrades a plain connection. False means implicit TLS,
	// the port 465 convention.
	StartTLS bool `yaml:"starttls"`
}

// Configured reports whether notifications can be delivered.
func (c Config) Configured() bool {
	return c.SMTP.Host != "" && c.From != ""
}

// ApplyDefaults fills the submission port and STARTTLS when a host is set.
func (c *Config) ApplyDefaults() {
	if c.SMTP.Host == "" {
		return
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if !c.SMTP.StartTLS && c.SMTP.Port != 465 {
		c.SMTP.StartTLS = true
	}
}

// Validate checks that a configured transport is complete.
func (c Config) Validate() error {
	if c.SMTP.Host == "" {
		return nil
	}
	if c.SMTP.Port < 1 || c.SMTP.Port > 65535 {
		return fmt.Errorf("email.smtp.port %d out of range (1-65535)", c.SMTP.Port)
	}
	if c.From == "" {
		return fmt.Errorf("email.from is required when email.smtp.host is set")
	}
	return nil
}
