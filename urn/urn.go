// Package urn builds and parses Relay resource URNs such as
// "urn:relay-resource:name:device:Alice".
package urn

import (
	"net/url"
	"strings"
)

const (
	Scheme = "urn"
	Root   = "relay-resource"

	Group       = "group"
	Device      = "device"
	Interaction = "interaction"

	ID   = "id"
	Name = "name"

	devicePattern = "?device="

	InteractionNamePrefix = Scheme + ":" + Root + ":" + Name + ":" + Interaction
	InteractionIDPrefix   = Scheme + ":" + Root + ":" + ID + ":" + Interaction
)

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func construct(resourceType, idType, idOrName string) string {
	return Scheme + ":" + Root + ":" + idType + ":" + resourceType + ":" + escape(idOrName)
}

// GroupID returns the URN of the group with id.
func GroupID(id string) string {
	return construct(Group, ID, id)
}

// GroupName returns the URN of the group named name.
func GroupName(name string) string {
	return construct(Group, Name, name)
}

// GroupMember returns the URN of the device named device within group.
func GroupMember(group, device string) string {
	return construct(Group, Name, group) + devicePattern + escape(construct(Device, Name, device))
}

// DeviceID returns the URN of the device with id.
func DeviceID(id string) string {
	return construct(Device, ID, id)
}

// DeviceName returns the URN of the device named name.
func DeviceName(name string) string {
	return construct(Device, Name, name)
}

// InteractionName returns the URN of the interaction named name.
func InteractionName(name string) string {
	return construct(Interaction, Name, name)
}

func decode(uri string) []string {
	s, err := url.QueryUnescape(uri)
	if err != nil {
		s = uri
	}
	return strings.Split(s, ":")
}

// ParseGroupName returns the group name of a group name URN.
func ParseGroupName(uri string) (string, bool) {
	c := decode(uri)
	if len(c) > 4 && c[2] == Name && c[3] == Group {
		return c[4], true
	}
	return "", false
}

// ParseGroupID returns the group id of a group id URN.
func ParseGroupID(uri string) (string, bool) {
	c := decode(uri)
	if len(c) > 4 && c[2] == ID && c[3] == Group {
		return c[4], true
	}
	return "", false
}

func parseDevice(uri, idType string) (string, bool) {
	c := decode(uri)
	if IsInteractionURI(strings.Join(c, ":")) {
		if len(c) > 8 && c[2] == idType && c[6] == idType {
			return c[8], true
		}
		return "", false
	}
	if len(c) > 4 && c[2] == idType {
		return c[4], true
	}
	return "", false
}

// ParseDeviceName returns the device name of a device name URN or of
// the device an interaction URN is bound to.
func ParseDeviceName(uri string) (string, bool) {
	return parseDevice(uri, Name)
}

// ParseDeviceID returns the device id of a device id URN or of the
// device an interaction URN is bound to.
func ParseDeviceID(uri string) (string, bool) {
	return parseDevice(uri, ID)
}

// ParseInteraction returns the interaction name of an interaction URN.
func ParseInteraction(uri string) (string, bool) {
	c := decode(uri)
	if !IsInteractionURI(strings.Join(c, ":")) || len(c) < 5 {
		return "", false
	}
	name, _, _ := strings.Cut(c[4], "?")
	return name, true
}

// IsInteractionURI reports whether uri names an interaction.
func IsInteractionURI(uri string) bool {
	return strings.Contains(uri, InteractionNamePrefix) || strings.Contains(uri, InteractionIDPrefix)
}

// IsRelayURI reports whether uri is a Relay resource URN.
func IsRelayURI(uri string) bool {
	return strings.HasPrefix(uri, Scheme+":"+Root)
}
