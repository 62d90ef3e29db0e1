package services

import (
	"errors"

	"casedesk/internal/models"

	"gorm.io/gorm"
)

// KnowledgeService is plain CRUD over notes and knowledge documents.
type KnowledgeService struct{}

func NewKnowledgeService() *KnowledgeService {
	return &KnowledgeService{}
}

func (s *KnowledgeService) GetNotes(caseID uint) ([]models.Note, error) {
	var notes []models.Note
	query := models.DB.Order("created_at DESC")
	if caseID != 0 {
		query = query.Where("case_id = ?", caseID)
	}
	if err := query.Find(&notes).Error; err != nil {
		return nil, err
	}
	return notes, nil
}

func (s *KnowledgeService) GetNote(id uint) (*models.Note, error) {
	var n models.Note
	if err := models.DB.First(&n, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (s *KnowledgeService) CreateNote(n *models.Note) error {
	return models.DB.Create(n).Error
}

func (s *KnowledgeService) UpdateNote(id uint, updates map[string]any) (*models.Note, error) {
	n, err := s.GetNote(id)
	if err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		if err := models.DB.Model(n).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.GetNote(id)
}

func (s *KnowledgeService) DeleteNote(id uint) error {
	n, err := s.GetNote(id)
	if err != nil {
		return err
	}
	return models.DB.Delete(n).Error
}

func (s *KnowledgeService) GetDocs(publishedOnly bool) ([]models.KnowledgeDoc, error) {
	var docs []models.KnowledgeDoc
	query := models.DB.Order("updated_at DESC")
	if publishedOnly {
		query = query.Where("published = ?", true)
	}
	if err := query.Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *KnowledgeService) GetDoc(id uint) (*models.KnowledgeDoc, error) {
	var d models.KnowledgeDoc
	if err := models.DB.First(&d, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (s *KnowledgeService) CreateDoc(d *models.KnowledgeDoc) error {
	return models.DB.Create(d).Error
}

func (s *KnowledgeService) UpdateDoc(id uint, updates map[string]any) (*models.KnowledgeDoc, error) {
	d, err := s.GetDoc(id)
	if err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		if err := models.DB.Model(d).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.GetDoc(id)
}

func (s *KnowledgeService) DeleteDoc(id uint) error {
	d, err := s.GetDoc(id)
	if err != nil {
		return err
	}
	return models.DB.Delete(d).Error
}
