package main

import (
	"fmt"
	"path/filepath"

	storageeng "github.com/relaypro/relay-go/engine/storage"
	storageengdiskv "github.com/relaypro/relay-go/engine/storage/diskv"
	storageenginmem "github.com/relaypro/relay-go/engine/storage/inmem"
	storageengmysql "github.com/relaypro/relay-go/engine/storage/mysql"
	storageinv "github.com/relaypro/relay-go/subsystem/inventory/storage"
	storageinvdiskv "github.com/relaypro/relay-go/subsystem/inventory/storage/diskv"
	storageinvinmem "github.com/relaypro/relay-go/subsystem/inventory/storage/inmem"

	_ "github.com/go-sql-driver/mysql"
)

type storageConfig struct {
	session   storageeng.Storage
	inventory storageinv.Storage
}

func parseStorage(name, dsn string) (*storageConfig, error) {
	switch name {
	case "inmem":
		return &storageConfig{
			session:   storageenginmem.New(),
			inventory: storageinvinmem.New(),
		}, nil
	case "file", "diskv":
		if dsn == "" {
			dsn = "db"
		}
		return &storageConfig{
			session:   storageengdiskv.New(dsn),
			inventory: storageinvdiskv.New(filepath.Join(dsn, "inventory")),
		}, nil
	case "mysql":
		eng, err := storageengmysql.New(storageengmysql.WithDSN(dsn))
		if err != nil {
			return nil, err
		}
		return &storageConfig{
			session:   eng,
			inventory: storageinvinmem.New(),
		}, nil
	}
	return nil, fmt.Errorf("unknown storage: %s", name)
}
