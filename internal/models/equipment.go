package models

import "time"

type Equipment struct {
	ID              int64     `yaml:"id" json:"id"`
	Name            string    `yaml:"name" json:"name"`
	ManagerUsername string    `yaml:"manager" json:"manager_username"`
	ImagePath       string    `yaml:"image_path" json:"image_path"`
	SortOrder       int64     `yaml:"sort_order" json:"sort_order"`
	IsActive        bool      `yaml:"is_active" json:"is_active"`
	CreatedAt       time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt       time.Time `yaml:"updated_at" json:"updated_at"`
}
