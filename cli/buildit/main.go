package main

import (
	"github.com/buildit-dev/buildit/cli/buildit/commands"
	_ "github.com/buildit-dev/buildit/cli/buildit/commands/dashboard"
	_ "github.com/buildit-dev/buildit/cli/buildit/commands/job"
	_ "github.com/buildit-dev/buildit/cli/buildit/commands/migrate"
	_ "github.com/buildit-dev/buildit/cli/buildit/commands/pipeline"
	_ "github.com/buildit-dev/buildit/cli/buildit/commands/worker"
)

func main() {
	commands.Execute()
}
