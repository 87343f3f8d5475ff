package services

import (
	"errors"
	"strconv"
	"strings"

	"github.com/taskmate/backend/internal/models"
	"gorm.io/gorm"
)

var ErrConfigNotFound = errors.New("config not found")

type SystemConfigService struct {
	db *gorm.DB
}

func NewSystemConfigService(db *gorm.DB) *SystemConfigService {
	return &SystemConfigService{db: db}
}

func (s *SystemConfigService) Get(key string) (string, error) {
	var cfg models.SystemConfig
	if err := s.db.Where("config_key = ?", key).First(&cfg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrConfigNotFound
		}
		return "", err
	}
	return cfg.Value, nil
}

func (s *SystemConfigService) GetWithDefault(key, defaultValue string) string {
	value, err := s.Get(key)
	if err != nil {
		return defaultValue
	}
	return value
}

func (s *SystemConfigService) GetInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(s.GetWithDefault(key, ""))
	if err != nil {
		return defaultValue
	}
	return n
}

// Set updates an existing key's value, creating it in the system group when
// it does not exist yet.
func (s *SystemConfigService) Set(key, value string) error {
	cfg := models.SystemConfig{
		Key:   key,
		Value: value,
		Type:  "string",
		Group: "system",
	}
	return s.db.Where(models.SystemConfig{Key: key}).
		Assign(models.SystemConfig{Value: value}).
		FirstOrCreate(&cfg).Error
}

func (s *SystemConfigService) GetByGroup(group string) ([]models.SystemConfig, error) {
	var configs []models.SystemConfig
	query := s.db.Order("config_key")
	if group != "" {
		query = query.Where("config_group = ?", group)
	}
	if err := query.Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}

type UpdateConfigRequest struct {
	Value string `json:"value" binding:"max=1000"`
}

// Update changes a known key. Integer-typed keys must parse as integers.
func (s *SystemConfigService) Update(key string, req *UpdateConfigRequest) (*models.SystemConfig, error) {
	var cfg models.SystemConfig
	if err := s.db.Where("config_key = ?", key).First(&cfg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	value := strings.TrimSpace(req.Value)
	if cfg.Type == "int" {
		if _, err := strconv.Atoi(value); err != nil {
			return nil, errInvalidConfigValue(key)
		}
	}
	if err := s.db.Model(&cfg).Update("value", value).Error; err != nil {
		return nil, err
	}
	cfg.Value = value
	return &cfg, nil
}

type invalidConfigValueError string

func (e invalidConfigValueError) Error() string {
	return string(e) + " must be an integer"
}

func errInvalidConfigValue(key string) error {
	return invalidConfigValueError(key)
}

// IsInvalidConfigValue reports whether err came from a failed type check.
func IsInvalidConfigValue(err error) bool {
	var target invalidConfigValueError
	return errors.As(err, &target)
}
