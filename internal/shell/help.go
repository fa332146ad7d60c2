package shell

import (
	"errors"
	"fmt"
	"sort"
)

var errUsage = errors.New("usage")

func usage(cmd string) error {
	return fmt.Errorf("%w: %s", errUsage, commandHelp[cmd])
}

var commandHelp = map[string]string{
	"signup":      `signup <username> <password> [avatar]`,
	"login":       `login <username> <password>`,
	"logout":      `logout`,
	"whoami":      `whoami`,
	"mood":        `mood [text...]  (empty clears it)`,
	"avatar":      `avatar <glyph>`,
	"name":        `name [display name...]`,
	"user":        `user <username>`,
	"communities": `communities`,
	"create":      `create <name> [description] [icon]  (quote names with spaces)`,
	"join":        `join <slug>`,
	"leave":       `leave <slug>`,
	"verify":      `verify <slug>  (admin)`,
	"show":        `show <slug> [hot|new]`,
	"post":        `post <slug> <text...>`,
	"up":          `up <slug> <comment id>`,
	"down":        `down <slug> <comment id>`,
	"recent":      `recent [n]`,
	"report":      `report <username> [reason...]`,
	"reports":     `reports [all]  (admin)`,
	"ban":         `ban <report id> <username> <minutes>  (0 is permanent, admin)`,
	"warn":        `warn <report id> <username>  (admin)`,
	"ignore":      `ignore <report id>  (admin)`,
	"clear":       `clear  (removes every comment, admin)`,
	"theme":       `theme [name]`,
	"check":       `check`,
	"help":        `help [command]`,
	"exit":        `exit`,
}

func (s *Shell) printHelp(args []string) {
	if len(args) > 0 {
		if help, ok := commandHelp[args[0]]; ok {
			fmt.Fprintln(s.out, help)
			return
		}
		fmt.Fprintf(s.out, "unknown command: %s\n", args[0])
		return
	}
	names := make([]string, 0, len(commandHelp))
	for name := range commandHelp {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(s.out, "commands:")
	for _, name := range names {
		fmt.Fprintf(s.out, "  %s\n", commandHelp[name])
	}
}
