package sshserver

// Config defines SSH console settings.
type Config struct {
	Addr        string
	HostKeyPath string
	Prompt      string
}
