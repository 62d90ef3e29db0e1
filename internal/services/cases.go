package services

import (
	"errors"

	"casedesk/internal/models"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

// CaseService is plain CRUD over cases and their to-dos. Audit interception
// happens in middleware, not here.
type CaseService struct{}

func NewCaseService() *CaseService {
	return &CaseService{}
}

func (s *CaseService) GetCases(status string) ([]models.Case, error) {
	var cases []models.Case
	query := models.DB.Order("updated_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Find(&cases).Error; err != nil {
		return nil, err
	}
	return cases, nil
}

func (s *CaseService) GetCase(id uint) (*models.Case, error) {
	var c models.Case
	if err := models.DB.First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *CaseService) CreateCase(c *models.Case) error {
	if c.Status == "" {
		c.Status = "open"
	}
	if c.Priority == "" {
		c.Priority = "normal"
	}
	return models.DB.Create(c).Error
}

func (s *CaseService) UpdateCase(id uint, updates map[string]any) (*models.Case, error) {
	c, err := s.GetCase(id)
	if err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		if err := models.DB.Model(c).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.GetCase(id)
}

func (s *CaseService) DeleteCase(id uint) error {
	c, err := s.GetCase(id)
	if err != nil {
		return err
	}
	return models.DB.Delete(c).Error
}

func (s *CaseService) GetTodos(caseID uint) ([]models.Todo, error) {
	var todos []models.Todo
	query := models.DB.Order("created_at DESC")
	if caseID != 0 {
		query = query.Where("case_id = ?", caseID)
	}
	if err := query.Find(&todos).Error; err != nil {
		return nil, err
	}
	return todos, nil
}

func (s *CaseService) GetTodo(id uint) (*models.Todo, error) {
	var t models.Todo
	if err := models.DB.First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *CaseService) CreateTodo(t *models.Todo) error {
	return models.DB.Create(t).Error
}

func (s *CaseService) UpdateTodo(id uint, updates map[string]any) (*models.Todo, error) {
	t, err := s.GetTodo(id)
	if err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		if err := models.DB.Model(t).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.GetTodo(id)
}

func (s *CaseService) DeleteTodo(id uint) error {
	t, err := s.GetTodo(id)
	if err != nil {
		return err
	}
	return models.DB.Delete(t).Error
}
