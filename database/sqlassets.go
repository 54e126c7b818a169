package sqlassets

import _ "embed"

//go:embed schema/visitors.sql
var VisitorsSQL string

//go:embed schema/admins.sql
var AdminsSQL string

//go:embed schema/batch_counters.sql
var BatchCountersSQL string
