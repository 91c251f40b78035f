package views

import "github.com/pterm/pterm"

type SystemInfoItem struct {
	ConfigPath   string
	Driver       string
	DBLocation   string
	DBExists     bool
	DefaultAsset string
	InvoicesOn   bool
	ServerAddr   string
	AppDataDir   string
}

func RenderSystemInfo(data SystemInfoItem) error {
	dbStatus := pterm.Green("Found")
	if !data.DBExists {
		dbStatus = pterm.Red("Not Found (Will be created)")
	}

	invoices := pterm.Green("Enabled")
	if !data.InvoicesOn {
		invoices = pterm.Yellow("Disabled (no token)")
	}

	tableData := pterm.TableData{
		{"Configuration File", data.ConfigPath},
		{"Database Driver", data.Driver},
		{"Database Location", data.DBLocation},
		{"Database Status", dbStatus},
		{"Default Asset", data.DefaultAsset},
		{"Crypto Pay Invoices", invoices},
		{"Server Address", data.ServerAddr},
		{"AppData Directory", data.AppDataDir},
	}

	return pterm.DefaultTable.WithData(tableData).Render()
}
