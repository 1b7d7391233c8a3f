// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package catalog

// seedCharms is the built-in classification of the charms the Upgrader
// knows how to drive a strategy for. It supplies Category only; the
// workload-version ranges and track-maps come from the two shipped
// CSVs (see csv.go) and are merged in with Merge. Per spec §6.3 the
// CSV *format* is specified but its content is not; this seed plays
// the same "content not specified here" role for the category axis,
// narrowed to the charms the seed end-to-end tests in this repo
// exercise.
var seedCharms = map[string]CharmDescriptor{
	"keystone":              {Name: "keystone", Category: CategoryOpenStackPrincipal},
	"keystone-ldap":          {Name: "keystone-ldap", Category: CategoryOpenStackSubordinate},
	"nova-compute":           {Name: "nova-compute", Category: CategoryOpenStackPrincipal},
	"nova-cloud-controller":  {Name: "nova-cloud-controller", Category: CategoryOpenStackPrincipal},
	"neutron-api":            {Name: "neutron-api", Category: CategoryOpenStackPrincipal},
	"cinder":                 {Name: "cinder", Category: CategoryOpenStackPrincipal},
	"glance":                 {Name: "glance", Category: CategoryOpenStackPrincipal},
	"octavia":                {Name: "octavia", Category: CategoryOpenStackPrincipal},
	"openstack-dashboard":    {Name: "openstack-dashboard", Category: CategoryOpenStackPrincipal},
	"placement":              {Name: "placement", Category: CategoryOpenStackPrincipal},
	"ovn-chassis":            {Name: "ovn-chassis", Category: CategoryOpenStackSubordinate},
	"ovn-central":            {Name: "ovn-central", Category: CategoryOpenStackPrincipal},
	"ceph-osd":               {Name: "ceph-osd", Category: CategoryCeph},
	"ceph-mon":               {Name: "ceph-mon", Category: CategoryCeph},
	"rabbitmq-server":        {Name: "rabbitmq-server", Category: CategoryOpenStackPrincipal},
	"mysql-innodb-cluster":   {Name: "mysql-innodb-cluster", Category: CategoryOpenStackPrincipal},
	"vault":                  {Name: "vault", Category: CategorySpecial},
	"hacluster":              {Name: "hacluster", Category: CategoryAuxiliarySubordinate},
	"ntp":                    {Name: "ntp", Category: CategoryAuxiliarySubordinate},
}

// cephToOpenStackSeed maps ceph-release names to the OpenStack release
// they shipped alongside, per §4.3 step 1.
var cephToOpenStackSeed = map[string]Release{
	"octopus":  "ussuri",
	"pacific":  "wallaby",
	"quincy":   "yoga",
	"reef":     "bobcat",
	"squid":    "caracal",
}

// longIdleCharms is the set of charms whose wait-for-idle steps use
// cou-long-idle-timeout instead of cou-standard-idle-timeout (§4.4).
var longIdleCharms = map[string]bool{
	"keystone":             true,
	"octavia":              true,
	"mysql-innodb-cluster":  true,
	"rabbitmq-server":      true,
}

// LongIdle reports whether charmName belongs to the long-idle set.
func LongIdle(charmName string) bool {
	return longIdleCharms[charmName]
}

// Default builds the Catalog from the built-in seed with empty
// version/track tables; production callers are expected to Merge in
// the two shipped CSVs first and pass the result to New instead. This
// is used by tests and by cmd/cou when either lookup CSV is absent.
func Default() *Catalog {
	return New(seedCharms, cephToOpenStackSeed)
}

// SeedCharms exposes a defensive copy of the built-in category seed so
// callers (notably the CSV-merge path in cmd/cou) can build a full
// Catalog via Merge + New.
func SeedCharms() map[string]CharmDescriptor {
	out := make(map[string]CharmDescriptor, len(seedCharms))
	for k, v := range seedCharms {
		out[k] = v
	}
	return out
}

// CephToOpenStackSeed exposes a defensive copy of the built-in
// ceph-release to OpenStack-release table.
func CephToOpenStackSeed() map[string]Release {
	out := make(map[string]Release, len(cephToOpenStackSeed))
	for k, v := range cephToOpenStackSeed {
		out[k] = v
	}
	return out
}
