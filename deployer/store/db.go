// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: MPL-2.0

package store

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type solutionRow struct {
	CustomerID               int `gorm:"primaryKey"`
	CustomerName             string
	NumberOfUsers            int
	RemoteSupport            bool
	RequestType              string
	NumberOfRequests         int
	DeploymentDate           time.Time
	PrimaryLocation          string
	PrimaryDeploymentType    string
	PrimaryDeploymentState   string
	SecondaryLocation        string
	SecondaryDeploymentType  string
	SecondaryDeploymentState string
}

func (solutionRow) TableName() string { return "solutions" }

type planRow struct {
	CustomerID int `gorm:"primaryKey"`
	Site       string
	Role       string
	Instances  datatypes.JSON
}

func (planRow) TableName() string { return "deployment_plans" }

type envRow struct {
	CustomerID int    `gorm:"primaryKey"`
	Key        string `gorm:"primaryKey"`
	Value      string
}

func (envRow) TableName() string { return "customer_env" }

type vmRow struct {
	CustomerID    int    `gorm:"primaryKey"`
	Instance      string `gorm:"primaryKey"`
	Name          string
	IP            string
	Username      string
	Password      string
	RootUsername  string
	RootPassword  string
	CLIUsername   string
	CLIPassword   string
	AdminPassword string
	Port          int
}

func (vmRow) TableName() string { return "vm_credentials" }

type extraRow struct {
	CustomerID int    `gorm:"primaryKey"`
	Instance   string `gorm:"primaryKey"`
	Key        string `gorm:"primaryKey"`
	Value      datatypes.JSON
}

func (extraRow) TableName() string { return "vm_extra_parameters" }

type datacenterRow struct {
	SiteName         string `gorm:"primaryKey"`
	SiteFName        string
	Factory          string
	Hostname         string
	Username         string
	Password         string
	IgnoreSSL        bool
	Datacenter       string
	Datastore        string
	Cluster          string
	DiskProvisioning string
	ResourcePool     string
}

func (datacenterRow) TableName() string { return "datacenters" }

// DB is the Postgres-backed Store.
type DB struct {
	db *gorm.DB
}

// Open connects to Postgres and migrates the schema.
func Open(dsn string) (*DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "connecting to database")
	}
	if err := db.AutoMigrate(
		&solutionRow{}, &planRow{}, &envRow{}, &vmRow{}, &extraRow{}, &datacenterRow{},
	); err != nil {
		return nil, errors.Wrap(err, "migrating schema")
	}
	return &DB{db: db}, nil
}

func (s *DB) CreateSolution(custID, numUsers int, remoteSupport bool, custName string) (*Solution, error) {
	row := solutionRow{
		CustomerID:       custID,
		CustomerName:     custName,
		NumberOfUsers:    numUsers,
		RemoteSupport:    remoteSupport,
		NumberOfRequests: 1,
		DeploymentDate:   time.Now(),
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing solutionRow
		err := tx.First(&existing, "customer_id = ?", custID).Error
		if err == nil {
			return duplicateSolution(custID)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return nil, err
	}
	return row.toSolution(), nil
}

func (r *solutionRow) toSolution() *Solution {
	return &Solution{
		CustomerID:               r.CustomerID,
		CustomerName:             r.CustomerName,
		NumberOfUsers:            r.NumberOfUsers,
		RemoteSupport:            r.RemoteSupport,
		RequestType:              r.RequestType,
		NumberOfRequests:         r.NumberOfRequests,
		DeploymentDate:           r.DeploymentDate,
		PrimaryLocation:          r.PrimaryLocation,
		PrimaryDeploymentType:    r.PrimaryDeploymentType,
		PrimaryDeploymentState:   r.PrimaryDeploymentState,
		SecondaryLocation:        r.SecondaryLocation,
		SecondaryDeploymentType:  r.SecondaryDeploymentType,
		SecondaryDeploymentState: r.SecondaryDeploymentState,
	}
}

func (s *DB) GetSolution(custID int) (*Solution, error) {
	var row solutionRow
	err := s.db.First(&row, "customer_id = ?", custID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notDeployed(custID), nil
	}
	if err != nil {
		return nil, err
	}
	return row.toSolution(), nil
}

func (s *DB) ListSolutions() ([]*Solution, error) {
	var rows []solutionRow
	if err := s.db.Order("customer_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := []*Solution{}
	for i := range rows {
		out = append(out, rows[i].toSolution())
	}
	return out, nil
}

func (s *DB) ListCustomers() ([]int, error) {
	var ids []int
	err := s.db.Model(&solutionRow{}).Order("customer_id").Pluck("customer_id", &ids).Error
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []int{}
	}
	return ids, nil
}

func (s *DB) DeleteSolution(custID int) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{
			&solutionRow{}, &planRow{}, &envRow{}, &vmRow{}, &extraRow{},
		} {
			if err := tx.Where("customer_id = ?", custID).Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *DB) SavePlan(custID int, plan *Plan) error {
	raw, err := json.Marshal(plan.Instances)
	if err != nil {
		return errors.Wrap(err, "encoding deployment plan")
	}
	row := planRow{CustomerID: custID, Site: plan.Site, Role: plan.Role, Instances: raw}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func (s *DB) GetPlan(custID int) (*Plan, error) {
	var row planRow
	err := s.db.First(&row, "customer_id = ?", custID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Errorf("no deployment plan for customer %d", custID)
	}
	if err != nil {
		return nil, err
	}
	plan := &Plan{Site: row.Site, Role: row.Role}
	if err := json.Unmarshal(row.Instances, &plan.Instances); err != nil {
		return nil, errors.Wrap(err, "decoding deployment plan")
	}
	return plan, nil
}

func (s *DB) SetCustEnv(custID int, key string, value *string) error {
	v := ""
	if value != nil {
		v = *value
	}
	row := envRow{CustomerID: custID, Key: key, Value: v}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func (s *DB) GetCustEnv(custID int, key string) (string, bool, error) {
	var row envRow
	err := s.db.First(&row, "customer_id = ? AND key = ?", custID, key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Value, true, nil
}

func (s *DB) SaveVMCredentials(custID int, instance string, creds VMCredentials) error {
	row := vmRow{
		CustomerID:    custID,
		Instance:      instance,
		Name:          creds.Name,
		IP:            creds.IP,
		Username:      creds.Username,
		Password:      creds.Password,
		RootUsername:  creds.RootUsername,
		RootPassword:  creds.RootPassword,
		CLIUsername:   creds.CLIUsername,
		CLIPassword:   creds.CLIPassword,
		AdminPassword: creds.AdminPassword,
		Port:          creds.Port,
	}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func (s *DB) GetVMCredentials(custID int, instance string) (*VMCredentials, error) {
	var row vmRow
	err := s.db.First(&row, "customer_id = ? AND instance = ?", custID, instance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Errorf("no credentials for customer %d instance %q", custID, instance)
	}
	if err != nil {
		return nil, err
	}
	return &VMCredentials{
		Name:          row.Name,
		IP:            row.IP,
		Username:      row.Username,
		Password:      row.Password,
		RootUsername:  row.RootUsername,
		RootPassword:  row.RootPassword,
		CLIUsername:   row.CLIUsername,
		CLIPassword:   row.CLIPassword,
		AdminPassword: row.AdminPassword,
		Port:          row.Port,
	}, nil
}

func (s *DB) SetVMPassword(custID int, instance, key, value string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var row vmRow
		err := tx.First(&row, "customer_id = ? AND instance = ?", custID, instance).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.Errorf("no credentials for customer %d instance %q", custID, instance)
		}
		if err != nil {
			return err
		}
		creds := VMCredentials{
			CLIPassword:   row.CLIPassword,
			AdminPassword: row.AdminPassword,
			RootPassword:  row.RootPassword,
		}
		if err := applyPassword(&creds, key, value); err != nil {
			return err
		}
		return tx.Model(&vmRow{}).
			Where("customer_id = ? AND instance = ?", custID, instance).
			Updates(map[string]interface{}{
				"cli_password":   creds.CLIPassword,
				"admin_password": creds.AdminPassword,
				"root_password":  creds.RootPassword,
			}).Error
	})
}

func (s *DB) SetVMExtraParameter(custID int, instance, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encoding extra parameter %q", key)
	}
	row := extraRow{CustomerID: custID, Instance: instance, Key: key, Value: raw}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func (s *DB) GetVMExtraParameter(custID int, instance, key string, out interface{}) (bool, error) {
	var row extraRow
	err := s.db.First(&row, "customer_id = ? AND instance = ? AND key = ?", custID, instance, key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(row.Value, out); err != nil {
		return true, errors.Wrapf(err, "decoding extra parameter %q", key)
	}
	return true, nil
}

func (s *DB) SaveDatacenter(dc Datacenter) error {
	row := datacenterRow(dc)
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func (s *DB) GetDatacenter(site string) (*Datacenter, error) {
	var row datacenterRow
	err := s.db.First(&row, "site_name = ?", site).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Errorf("unknown site %q", site)
	}
	if err != nil {
		return nil, err
	}
	dc := Datacenter(row)
	return &dc, nil
}
