package probe

import (
	"strings"
)

// OUITable maps 3-octet MAC prefixes (uppercase hex, no separators) to vendor
// names. The built-in table covers vendors common on LANs with cameras; a
// replacement table can be injected via Prober.
type OUITable map[string]string

// DefaultOUITable is the built-in OUI prefix table.
var DefaultOUITable = OUITable{
	"001812": "Hikvision",
	"4419B6": "Hikvision",
	"BCAD28": "Hikvision",
	"C06118": "Hikvision",
	"3C8CF8": "Dahua",
	"9002A9": "Dahua",
	"E0508B": "Dahua",
	"00408C": "Axis Communications",
	"ACCC8E": "Axis Communications",
	"B8A44F": "Axis Communications",
	"00626E": "Foscam",
	"C8F742": "Foscam",
	"EC71DB": "Reolink",
	"9C8ECD": "Amcrest",
	"0002D1": "Vivotek",
	"0013E2": "Uniview",
	"481063": "Uniview",
	"001CB3": "Apple",
	"F0D1A9": "Apple",
	"3C0754": "Apple",
	"00155D": "Microsoft",
	"B4A9FC": "TP-Link",
	"50C7BF": "TP-Link",
	"14CC20": "TP-Link",
	"C05627": "Netgear",
	"A040A0": "Netgear",
	"00179A": "D-Link",
	"1C7EE5": "D-Link",
	"001A2B": "Cisco",
	"00000C": "Cisco",
	"B827EB": "Raspberry Pi Foundation",
	"DCA632": "Raspberry Pi Foundation",
	"E45F01": "Raspberry Pi Foundation",
	"001B63": "Ubiquiti",
	"FCECDA": "Ubiquiti",
	"784558": "Ubiquiti",
	"0017C8": "Kyocera",
	"002673": "Ricoh",
	"008077": "Brother",
	"3C2AF4": "Brother",
	"00215A": "Hewlett Packard",
	"A08CFD": "Hewlett Packard",
	"FCFBFB": "Samsung",
	"8C7712": "Samsung",
	"0090A9": "Western Digital",
	"000C29": "VMware",
	"005056": "VMware",
	"525400": "QEMU",
	"0003FF": "Synology",
	"001132": "Synology",
	"00089B": "QNAP",
	"245EBE": "QNAP",
}

// LookupVendor resolves the vendor for a MAC address via its OUI prefix.
// Returns "Unknown" when the prefix is not in the table.
func (t OUITable) LookupVendor(mac string) string {
	normalized := strings.NewReplacer(":", "", "-", "", ".", "").Replace(mac)
	normalized = strings.ToUpper(strings.TrimSpace(normalized))
	if len(normalized) < 6 {
		return "Unknown"
	}
	if vendor, ok := t[normalized[:6]]; ok {
		return vendor
	}
	return "Unknown"
}
