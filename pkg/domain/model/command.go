package model

import "time"

// CommandAction represents a command execution action
type CommandAction struct {
	Command string        `yaml:"command"`
	Args    []string      `yaml:"args,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
	Env     []string      `yaml:"env,omitempty"` // KEY=value
}

// Step is one command of the gated job (dependency install or test)
type Step struct {
	Name    string        `yaml:"name,omitempty"`
	Command string        `yaml:"command"`
	Args    []string      `yaml:"args,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
	Env     []string      `yaml:"env,omitempty"`
	Dir     string        `yaml:"dir,omitempty"`
}

func (s Step) Empty() bool {
	return s.Command == ""
}
