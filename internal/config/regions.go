package config

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
)

// SupportedRegions are the regions commonly available for managed online endpoints.
var SupportedRegions = sets.New(
	"eastus", "eastus2", "westus", "westus2", "westus3",
	"centralus", "northcentralus", "southcentralus", "westcentralus",
	"canadacentral", "canadaeast", "brazilsouth",
	"northeurope", "westeurope", "francecentral", "germanywestcentral",
	"norwayeast", "switzerlandnorth", "uksouth", "ukwest",
	"southeastasia", "eastasia", "australiaeast", "australiasoutheast",
	"centralindia", "southindia", "japaneast", "japanwest",
	"koreacentral", "koreasouth",
)

// NormalizeRegion lower-cases a region and strips spaces, so "East US 2"
// becomes "eastus2".
func NormalizeRegion(region string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(region), " ", ""))
}

// ValidateRegion accepts an empty region (the workspace region is used) or
// one of SupportedRegions. The error for an unknown region lists close matches.
func ValidateRegion(region string) error {
	normalized := NormalizeRegion(region)
	if normalized == "" || SupportedRegions.Has(normalized) {
		return nil
	}

	if suggestions := SuggestRegions(normalized); len(suggestions) > 0 {
		return fmt.Errorf("region %q is not supported for online endpoints (did you mean: %s?)",
			region, strings.Join(suggestions, ", "))
	}
	return fmt.Errorf("region %q is not supported for online endpoints", region)
}

// SuggestRegions returns the supported regions that contain region, are
// contained in it, or share its first four characters, sorted.
func SuggestRegions(region string) []string {
	region = NormalizeRegion(region)
	if region == "" {
		return nil
	}

	prefix := region[:min(4, len(region))]
	matches := sets.New[string]()
	for candidate := range SupportedRegions {
		if strings.Contains(candidate, region) ||
			strings.Contains(region, candidate) ||
			strings.HasPrefix(candidate, prefix) {
			matches.Insert(candidate)
		}
	}
	return sets.List(matches)
}
