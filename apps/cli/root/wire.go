package root

import (
	"github.com/steelworks-digital/vms-server/apps/cli/cmd/admin"
	"github.com/steelworks-digital/vms-server/apps/cli/cmd/auth"
	"github.com/steelworks-digital/vms-server/apps/cli/cmd/bootstrap"
)

func init() {
	Root().AddCommand(admin.Command())
	Root().AddCommand(auth.Command())
	Root().AddCommand(bootstrap.Command())
}
