package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
)

func notEmpty(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("must not be empty")
	}
	return nil
}

// ask re-runs the prompt until it validates. Ctrl-C and EOF abort.
func ask(prompt promptui.Prompt) (string, error) {
	for {
		result, err := prompt.Run()
		if err == nil {
			return result, nil
		}
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return "", fmt.Errorf("configuration aborted: %w", err)
		}
		fmt.Printf("Invalid %s: %v\n", strings.ToLower(prompt.Label.(string)), err)
	}
}

func buildConfigPrompt() (Configuration, error) {
	config := Configuration{}
	var err error

	if config.AppToken, err = ask(promptui.Prompt{
		Label:    "Application Token",
		Mask:     '*',
		Validate: notEmpty,
	}); err != nil {
		return config, err
	}

	if config.Broker, err = ask(promptui.Prompt{
		Label:    "MQTT Broker",
		Validate: validateBroker,
		Default:  "ssl://mqtt.wpamesh.net:8883",
	}); err != nil {
		return config, err
	}

	if config.Username, err = ask(promptui.Prompt{
		Label:    "MQTT User",
		Validate: notEmpty,
	}); err != nil {
		return config, err
	}

	if config.Password, err = ask(promptui.Prompt{
		Label:    "MQTT Password",
		Mask:     '*',
		Validate: notEmpty,
	}); err != nil {
		return config, err
	}

	if config.RootTopic, err = ask(promptui.Prompt{
		Label:    "MQTT Root Topic",
		Default:  "mesht/relay",
		Validate: notEmpty,
	}); err != nil {
		return config, err
	}

	udp := promptui.Select{
		Label: "Listen for UDP multicast",
		Items: []string{"yes", "no"},
	}
	_, choice, err := udp.Run()
	if err != nil {
		return config, fmt.Errorf("configuration aborted: %w", err)
	}
	config.UDP.Enabled = choice == "yes"

	return config, nil
}
