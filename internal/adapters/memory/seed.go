package memory

import "github.com/foundry/pkgdemo/internal/core/models"

// ExamplePackages returns the records a fresh server starts with.
func ExamplePackages() []models.PackageRecord {
	return []models.PackageRecord{
		{
			ID:             "FluentAssertions",
			TotalDownloads: 538_494_255,
			Versions: []models.VersionRecord{
				{
					Version:       "8.6.0",
					Description:   "A very extensive set of extension methods that allow you to more naturally specify the expected outcome of a TDD or BDD-style unit tests.",
					Readme:        "See Fluent Assertions documentation on NuGet.",
					LicenseURL:    "https://opensource.org/licenses/Apache-2.0 (prior to v8); new license info available at the FluentAssertions site.",
					License:       "Commercial (for v8+, non-commercial open-source free)",
					ProjectURL:    "https://github.com/fluentassertions/fluentassertions",
					RepositoryURL: "https://github.com/fluentassertions/fluentassertions",
					Owner:         "dennisdoomen",
				},
				{
					Version:       "7.0.0",
					Description:   "Same assertion library, last fully open-source version under Apache-2.0 license.",
					Readme:        "See Fluent Assertions documentation on NuGet.",
					LicenseURL:    "https://opensource.org/licenses/Apache-2.0",
					License:       "Apache-2.0",
					ProjectURL:    "https://github.com/fluentassertions/fluentassertions",
					RepositoryURL: "https://github.com/fluentassertions/fluentassertions",
					Owner:         "dennisdoomen",
				},
			},
		},
		{
			ID:             "PackageGuard",
			TotalDownloads: 3484,
			Versions: []models.VersionRecord{
				{
					Version:     "1.5.0",
					Description: "PackageGuard is a fully open-source tool to scan the NuGet dependencies of your .NET solutions against a deny- or allowlist.",
					Readme:      "See PackageGuard page on NuGet.",
				},
				{
					Version:     "1.4.0",
					Description: "Previous release of PackageGuard",
				},
			},
		},
		{
			ID:             "Pathy",
			TotalDownloads: 1449,
			Versions: []models.VersionRecord{
				{
					Version:     "0.2.2",
					Description: "Path is a command-line tool to manage PATH environment variable on Windows.",
					Readme:      "See Path NuGet page.",
				},
				{
					Version:     "0.2.1",
					Description: "Previous Path release",
				},
			},
		},
		{
			ID:             "DotNetLibraryPackageTemplates",
			TotalDownloads: 1300,
			Versions: []models.VersionRecord{
				{
					Version:     "1.4.3",
					Description: "A dotnet new template for a .NET class library package with all the necessary components to publish it on NuGet.",
					Readme:      "See DotNetLibraryPackageTemplates NuGet page.",
				},
				{
					Version:     "1.4.2",
					Description: "Previous version of the template package",
				},
			},
		},
	}
}
