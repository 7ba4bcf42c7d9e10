package builtins

import "github.com/andrei-cloud/ebookconv/internal/plugins"

type profileDef struct {
	name        string
	description string
	profile     plugins.Profile
}

var defaultSizes = []float64{5, 7, 9, 12, 13.5, 17, 20, 22, 24}

var inputProfiles = []profileDef{
	{
		name:        "Default Input Profile",
		description: "This profile tries to provide sane defaults and is useful if you know nothing about the input document.",
		profile: plugins.Profile{
			ShortName: "default", ScreenWidth: 1600, ScreenHeight: 1200, DPI: 100, FBase: 12, FSizes: defaultSizes,
		},
	},
	{
		name:        "Sony Reader",
		description: "This profile is intended for the SONY PRS line. The 500/505/600/700 etc.",
		profile: plugins.Profile{
			ShortName: "sony", ScreenWidth: 584, ScreenHeight: 754, DPI: 168.451, FBase: 12,
			FSizes: []float64{7.5, 9, 10, 12, 15.5, 20, 22, 24},
		},
	},
	{
		name:        "Mobipocket Books",
		description: "This profile is intended for the Mobipocket books.",
		profile: plugins.Profile{
			ShortName: "mobipocket", ScreenWidth: 600, ScreenHeight: 800, DPI: 96, FBase: 18,
			FSizes: []float64{14, 14, 16, 18, 20, 22, 24, 26},
		},
	},
}

var outputProfiles = []profileDef{
	{
		name:        "Default Output Profile",
		description: "This profile tries to provide sane defaults and is useful if you want to produce a document intended to be read at a computer or on a range of devices.",
		profile: plugins.Profile{
			ShortName: "default", ScreenWidth: 1600, ScreenHeight: 1200, DPI: 100, FBase: 12, FSizes: defaultSizes,
		},
	},
	{
		name:        "Kindle",
		description: "This profile is intended for the Amazon Kindle.",
		profile: plugins.Profile{
			ShortName: "kindle", ScreenWidth: 525, ScreenHeight: 640, DPI: 168.451, FBase: 16,
			FSizes: []float64{12, 12, 14, 16, 18, 20, 22, 24},
		},
	},
	{
		name:        "Kobo Reader",
		description: "This profile is intended for the Kobo Reader.",
		profile: plugins.Profile{
			ShortName: "kobo", ScreenWidth: 536, ScreenHeight: 710, DPI: 168.451, FBase: 12,
			FSizes: []float64{7.5, 9, 10, 12, 15.5, 16.5, 18.5, 20.5},
		},
	},
	{
		name:        "iPad",
		description: "Intended for the iPad and similar devices with a resolution of 768x1024.",
		profile: plugins.Profile{
			ShortName: "ipad", ScreenWidth: 768, ScreenHeight: 1024, DPI: 132, FBase: 12, FSizes: defaultSizes,
		},
	},
}
