package operation

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// Action is the closed set of operations a client may request.
type Action string

const (
	ActionInstall Action = "install"
	ActionRemove  Action = "remove"
	ActionUpdate  Action = "update"
)

var (
	// ErrMalformed means the message was not a JSON object with an action.
	ErrMalformed = errors.New("malformed message")
	// ErrUnknownAction means the action is not one we handle. Callers ignore it.
	ErrUnknownAction = errors.New("unknown action")
	// ErrInvalidPackage means the package name is missing or not a valid
	// pacman package name.
	ErrInvalidPackage = errors.New("invalid package name")
)

// Pacman package names: lowercase alphanumerics and @._+-, not starting
// with a hyphen or a dot.
var packageNamePattern = regexp.MustCompile(`^[a-z0-9@_+][a-z0-9@._+-]*$`)

const maxPackageNameLen = 255

// Request is the wire shape of an inbound client message.
type Request struct {
	Action    string `json:"action"`
	Package   string `json:"package,omitempty"`
	NoConfirm bool   `json:"noconfirm,omitempty"`
}

// Command is a validated client request.
type Command struct {
	Action    Action
	Package   string
	NoConfirm bool
}

// Install builds an install command.
func Install(pkg string, noConfirm bool) Command {
	return Command{Action: ActionInstall, Package: pkg, NoConfirm: noConfirm}
}

// Remove builds a remove command.
func Remove(pkg string) Command {
	return Command{Action: ActionRemove, Package: pkg}
}

// Update builds a full system update command.
func Update() Command {
	return Command{Action: ActionUpdate}
}

// needsHelper reports whether the command runs through the AUR helper.
// Remove always goes through pacman directly.
func (c Command) needsHelper() bool {
	return c.Action == ActionInstall || c.Action == ActionUpdate
}

// ParseCommand decodes and validates one inbound message.
func ParseCommand(data []byte) (Command, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if req.Action == "" {
		return Command{}, fmt.Errorf("%w: missing action", ErrMalformed)
	}

	switch Action(req.Action) {
	case ActionInstall:
		if err := ValidatePackageName(req.Package); err != nil {
			return Command{}, err
		}
		return Install(req.Package, req.NoConfirm), nil
	case ActionRemove:
		if err := ValidatePackageName(req.Package); err != nil {
			return Command{}, err
		}
		return Remove(req.Package), nil
	case ActionUpdate:
		return Update(), nil
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}
}

// ValidatePackageName rejects names that pacman would not accept, which also
// keeps a name from ever being read as a command-line flag.
func ValidatePackageName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: package name is required", ErrInvalidPackage)
	}
	if len(name) > maxPackageNameLen || !packageNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidPackage, name)
	}
	return nil
}
