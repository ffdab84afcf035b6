package dto

import "decor-ai-be/internal/entity"

type UpdatePreferencesRequest struct {
	ColorPalette  *string `json:"color_palette" validate:"omitempty,max=200"`
	FurnitureTier *string `json:"furniture_tier" validate:"omitempty,oneof=any affordable luxury sustainable"`
	Material      *string `json:"material" validate:"omitempty,max=200"`
}

func (r UpdatePreferencesRequest) ToPatch() entity.PreferencesPatch {
	patch := entity.PreferencesPatch{
		ColorPalette: r.ColorPalette,
		Material:     r.Material,
	}
	if r.FurnitureTier != nil {
		tier := entity.FurnitureTier(*r.FurnitureTier)
		patch.FurnitureTier = &tier
	}
	return patch
}

type OptionTargetRequest struct {
	OptionId string `json:"option_id" validate:"required"`
}

type ApplyEditRequest struct {
	OptionId    string `json:"option_id" validate:"required"`
	Instruction string `json:"instruction" validate:"required,max=2000"`
}

type PerspectiveAngleRequest struct {
	Angle string `json:"angle" validate:"required,oneof=front left right top"`
}

type CreateWorkspaceResponse struct {
	Id    string               `json:"id"`
	State entity.WorkflowState `json:"state"`
}
