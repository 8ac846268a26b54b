package lambda

import (
	"fmt"
	"sort"
)

// Status is the lifecycle status of an instance as reported by Lambda Cloud.
type Status string

const (
	StatusActive     Status = "active"
	StatusBooting    Status = "booting"
	StatusUnhealthy  Status = "unhealthy"
	StatusTerminated Status = "terminated"
)

// Region is a Lambda Cloud region.
type Region struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Specs are the hardware specifications of an instance type.
type Specs struct {
	VCPUs      int `json:"vcpus"`
	MemoryGiB  int `json:"memory_gib"`
	StorageGiB int `json:"storage_gib"`
}

// InstanceType describes the hardware and price of an instance type.
type InstanceType struct {
	Name              string `json:"name"`
	Description       string `json:"description"`
	PriceCentsPerHour int    `json:"price_cents_per_hour"`
	Specs             Specs  `json:"specs"`
}

// CapacityEntry is one entry of the instance type catalog. An empty region
// list means the type has no capacity anywhere.
type CapacityEntry struct {
	InstanceType                 InstanceType `json:"instance_type"`
	RegionsWithCapacityAvailable []Region     `json:"regions_with_capacity_available"`
}

// Available reports whether at least one region has capacity.
func (e CapacityEntry) Available() bool {
	return len(e.RegionsWithCapacityAvailable) > 0
}

// RegionNames returns the names of regions with capacity, in provider order.
func (e CapacityEntry) RegionNames() []string {
	names := make([]string, 0, len(e.RegionsWithCapacityAvailable))
	for _, r := range e.RegionsWithCapacityAvailable {
		names = append(names, r.Name)
	}
	return names
}

// Catalog is the instance type catalog keyed by instance type name.
type Catalog map[string]CapacityEntry

// Names returns the catalog keys in sorted order.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Instance is a virtual machine in Lambda Cloud.
//
// Optional fields the API may return as null decode to their zero value.
type Instance struct {
	ID              string        `json:"id"`
	Status          Status        `json:"status"`
	SSHKeyNames     []string      `json:"ssh_key_names"`
	FileSystemNames []string      `json:"file_system_names"`
	Name            string        `json:"name,omitempty"`
	IP              string        `json:"ip,omitempty"`
	Region          *Region       `json:"region,omitempty"`
	InstanceType    *InstanceType `json:"instance_type,omitempty"`
	Hostname        string        `json:"hostname,omitempty"`
	JupyterToken    string        `json:"jupyter_token,omitempty"`
	JupyterURL      string        `json:"jupyter_url,omitempty"`
}

// TypeName returns the instance type name, or "" if the API omitted it.
func (i *Instance) TypeName() string {
	if i.InstanceType == nil {
		return ""
	}
	return i.InstanceType.Name
}

// RegionName returns the region name, or "" if the API omitted it.
func (i *Instance) RegionName() string {
	if i.Region == nil {
		return ""
	}
	return i.Region.Name
}

// SSHKey is an SSH public key registered with the account.
type SSHKey struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	PublicKey string `json:"public_key"`
}

// LaunchRequest is the body of POST /instance-operations/launch.
type LaunchRequest struct {
	RegionName       string   `json:"region_name"`
	InstanceTypeName string   `json:"instance_type_name"`
	SSHKeyNames      []string `json:"ssh_key_names"`
	FileSystemNames  []string `json:"file_system_names,omitempty"`
	Quantity         int      `json:"quantity"`
	Name             string   `json:"name,omitempty"`
}

// NewLaunchRequest builds a request for a single instance with a single SSH
// key. The API accepts several keys, but a runner is launched with exactly one.
func NewLaunchRequest(instanceType, region, sshKeyName, name string, fileSystems []string) (LaunchRequest, error) {
	if instanceType == "" {
		return LaunchRequest{}, fmt.Errorf("instance type name is required")
	}
	if region == "" {
		return LaunchRequest{}, fmt.Errorf("region name is required")
	}
	if sshKeyName == "" {
		return LaunchRequest{}, fmt.Errorf("exactly one SSH key name is required")
	}
	return LaunchRequest{
		RegionName:       region,
		InstanceTypeName: instanceType,
		SSHKeyNames:      []string{sshKeyName},
		FileSystemNames:  fileSystems,
		Quantity:         1,
		Name:             name,
	}, nil
}

// TerminateRequest is the body of POST /instance-operations/terminate.
type TerminateRequest struct {
	InstanceIDs []string `json:"instance_ids"`
}

type instanceTypesResponse struct {
	Data map[string]CapacityEntry `json:"data"`
}

type listInstancesResponse struct {
	Data []Instance `json:"data"`
}

type getInstanceResponse struct {
	Data Instance `json:"data"`
}

type launchResponse struct {
	Data struct {
		InstanceIDs []string `json:"instance_ids"`
	} `json:"data"`
}

type terminateResponse struct {
	Data struct {
		TerminatedInstances []Instance `json:"terminated_instances"`
	} `json:"data"`
}

type listSSHKeysResponse struct {
	Data []SSHKey `json:"data"`
}

type errorResponse struct {
	Error       errorBody            `json:"error"`
	FieldErrors map[string]errorBody `json:"field_errors,omitempty"`
}

type errorBody struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}
