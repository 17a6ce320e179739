package provisioning

import (
	"gorm.io/gorm"

	"github.com/luminacursos/checkout/app/models"
)

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a deployment repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetActiveDeploymentsBySlugs(slugs []string) ([]models.Deployment, error) {
	var deployments []models.Deployment
	if err := r.db.Where("slug IN ? AND is_active = ?", slugs, true).Find(&deployments).Error; err != nil {
		return nil, err
	}
	return deployments, nil
}
