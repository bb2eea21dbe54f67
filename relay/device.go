package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/relaypro/relay-go/logkeys"
	"github.com/relaypro/relay-go/protocol"
	invstorage "github.com/relaypro/relay-go/subsystem/inventory/storage"
	"github.com/relaypro/relay-go/urn"
)

// GetDeviceInfo queries target for a single device attribute. refresh
// asks the device for a fresh value instead of the last known one.
func (r *Relay) GetDeviceInfo(ctx context.Context, target string, query protocol.DeviceInfoQuery, refresh bool) (*protocol.DeviceInfoResponse, error) {
	resp, err := r.call(ctx, targeted(protocol.RequestGetDeviceInfo, target, params{"query": query, "refresh": refresh}))
	if err != nil {
		return nil, fmt.Errorf("get device info %s: %w", query, err)
	}
	info := new(protocol.DeviceInfoResponse)
	if err = resp.Unmarshal(info); err != nil {
		return nil, err
	}
	r.record(ctx, target, query, info)
	return info, nil
}

// deviceValue returns the value of query in info.
func deviceValue(query protocol.DeviceInfoQuery, info *protocol.DeviceInfoResponse) interface{} {
	switch query {
	case protocol.QueryName:
		return info.Name.String()
	case protocol.QueryID:
		return info.ID.String()
	case protocol.QueryAddress:
		return info.Address.String()
	case protocol.QueryLatLong:
		return info.LatLong
	case protocol.QueryIndoorLocation:
		return info.IndoorLocation.String()
	case protocol.QueryBattery:
		if info.Battery == nil {
			return nil
		}
		return *info.Battery
	case protocol.QueryType:
		return info.Type.String()
	case protocol.QueryUsername:
		return info.Username.String()
	case protocol.QueryLocationEnabled:
		return info.LocationEnabled
	}
	return nil
}

// inventoryID returns the device URN that target refers to. Targets
// addressing a device through an interaction are keyed by the device.
func inventoryID(target string) string {
	if !urn.IsInteractionURI(target) {
		return target
	}
	if name, ok := urn.ParseDeviceName(target); ok {
		return urn.DeviceName(name)
	}
	if id, ok := urn.ParseDeviceID(target); ok {
		return urn.DeviceID(id)
	}
	return target
}

// record stores the queried value in the inventory, if configured.
func (r *Relay) record(ctx context.Context, target string, query protocol.DeviceInfoQuery, info *protocol.DeviceInfoResponse) {
	if r.inventory == nil || target == "" {
		return
	}
	v := deviceValue(query, info)
	if v == nil {
		return
	}
	err := r.inventory.StoreInventoryValues(ctx, inventoryID(target), invstorage.Values{
		string(query):           v,
		invstorage.KeyUpdatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		r.logger.Info(
			logkeys.Message, "storing device info",
			logkeys.Target, target,
			logkeys.Error, err,
		)
	}
}

// GetDeviceName returns the name of target.
func (r *Relay) GetDeviceName(ctx context.Context, target string, refresh bool) (string, error) {
	info, err := r.GetDeviceInfo(ctx, target, protocol.QueryName, refresh)
	if err != nil {
		return "", err
	}
	return info.Name.String(), nil
}

// GetDeviceID returns the id of target.
func (r *Relay) GetDeviceID(ctx context.Context, target string, refresh bool) (string, error) {
	info, err := r.GetDeviceInfo(ctx, target, protocol.QueryID, refresh)
	if err != nil {
		return "", err
	}
	return info.ID.String(), nil
}

// GetDeviceAddress returns the street address of target.
func (r *Relay) GetDeviceAddress(ctx context.Context, target string, refresh bool) (string, error) {
	info, err := r.GetDeviceInfo(ctx, target, protocol.QueryAddress, refresh)
	if err != nil {
		return "", err
	}
	return info.Address.String(), nil
}

// GetDeviceLatLong returns the latitude and longitude of target.
func (r *Relay) GetDeviceLatLong(ctx context.Context, target string, refresh bool) ([]float64, error) {
	info, err := r.GetDeviceInfo(ctx, target, protocol.QueryLatLong, refresh)
	if err != nil {
		return nil, err
	}
	return info.LatLong, nil
}

// GetDeviceIndoorLocation returns the indoor location of target.
func (r *Relay) GetDeviceIndoorLocation(ctx context.Context, target string, refresh bool) (string, error) {
	info, err := r.GetDeviceInfo(ctx, target, protocol.QueryIndoorLocation, refresh)
	if err != nil {
		return "", err
	}
	return info.IndoorLocation.String(), nil
}

// GetDeviceBattery returns the battery percentage of target.
func (r *Relay) GetDeviceBattery(ctx context.Context, target string, refresh bool) (int, error) {
	info, err := r.GetDeviceInfo(ctx, target, protocol.QueryBattery, refresh)
	if err != nil {
		return 0, err
	}
	if info.Battery == nil {
		return 0, fmt.Errorf("%w: %s", ErrNoValue, protocol.QueryBattery)
	}
	return *info.Battery, nil
}

// GetDeviceType returns the device type of target.
func (r *Relay) GetDeviceType(ctx context.Context, target string, refresh bool) (string, error) {
	info, err := r.GetDeviceInfo(ctx, target, protocol.QueryType, refresh)
	if err != nil {
		return "", err
	}
	return info.Type.String(), nil
}

// GetDeviceUsername returns the user logged in on target.
func (r *Relay) GetDeviceUsername(ctx context.Context, target string, refresh bool) (string, error) {
	info, err := r.GetDeviceInfo(ctx, target, protocol.QueryUsername, refresh)
	if err != nil {
		return "", err
	}
	return info.Username.String(), nil
}

// GetDeviceLocationEnabled reports whether location reporting is on for target.
func (r *Relay) GetDeviceLocationEnabled(ctx context.Context, target string, refresh bool) (bool, error) {
	info, err := r.GetDeviceInfo(ctx, target, protocol.QueryLocationEnabled, refresh)
	if err != nil {
		return false, err
	}
	return info.LocationEnabled, nil
}
