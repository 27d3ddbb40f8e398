package vschallan

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/invento-software-limited/Smart-Vat-Challan/config"
	"github.com/invento-software-limited/Smart-Vat-Challan/models"
	"github.com/invento-software-limited/Smart-Vat-Challan/store"
	"github.com/invento-software-limited/Smart-Vat-Challan/utils"
)

const (
	retailerRegistrationPath = "/integration/retail_registration"
	branchRegistrationPath   = "/integration/retailer_branch_registration"
	uploadFilePath           = "/integration/upload_file"
)

type RegistrationOutcome string

const (
	// Registered is a fresh registration accepted by the authority.
	Registered RegistrationOutcome = "registered"
	// AlreadyExists means the authority already knew the entity and returned
	// its existing id.
	AlreadyExists RegistrationOutcome = "already_exists"
	// AlreadyRegistered means the local record already held a remote id and
	// no request was sent.
	AlreadyRegistered RegistrationOutcome = "already_registered"
)

type RegistrationResult struct {
	Outcome      RegistrationOutcome `json:"outcome"`
	RemoteID     string              `json:"remote_id"`
	RemoteNumber string              `json:"remote_number"`
}

type registrationShape struct {
	idKey      string
	numberKey  string
	detailsKey string
}

var (
	retailerShape = registrationShape{idKey: "retailer_id", numberKey: "retailer_number", detailsKey: "retailer_details"}
	branchShape   = registrationShape{idKey: "branch_id", numberKey: "branch_number", detailsKey: "branch_details"}
)

// interpretRegistration maps the three answer shapes of the registration
// endpoints to an outcome.
func interpretRegistration(op string, doc Document, shape registrationShape) (RegistrationResult, error) {
	statusCode := doc.String("status_code")
	success := doc.String("success")
	data := doc.Map("data")

	switch {
	case statusCode == "200" && data != nil:
		id, number := data.String(shape.idKey), data.String(shape.numberKey)
		if id != "" && number != "" {
			return RegistrationResult{Outcome: Registered, RemoteID: id, RemoteNumber: number}, nil
		}
		if details := data.Map(shape.detailsKey); details != nil {
			existingID := details.firstString("id", shape.idKey)
			if existingID != "" {
				return RegistrationResult{
					Outcome:      AlreadyExists,
					RemoteID:     existingID,
					RemoteNumber: details.String(shape.numberKey),
				}, nil
			}
		}
		return RegistrationResult{}, newError(ErrRegistration, op, "response carries neither a new nor an existing "+shape.idKey, nil)
	case success == "0":
		msg := doc.firstString("error", "message")
		if msg == "" {
			msg = "rejected by the VAT authority"
		}
		return RegistrationResult{}, newError(ErrRegistration, op, msg, nil)
	default:
		return RegistrationResult{}, newError(ErrUnexpectedResponse, op, fmt.Sprintf("status_code=%q success=%q", statusCode, success), nil)
	}
}

// RegisterRetailer submits the retailer once. A record that already holds a
// remote retailer id is returned as AlreadyRegistered without a request.
func (s *Service) RegisterRetailer(ctx context.Context, id uint) (RegistrationResult, error) {
	const op = "RegisterRetailer"
	retailer, err := s.repo.GetRetailer(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return RegistrationResult{}, newError(ErrValidation, op, fmt.Sprintf("retailer registration %d not found", id), err)
		}
		return RegistrationResult{}, err
	}
	if retailer.IsRegistered() {
		return RegistrationResult{Outcome: AlreadyRegistered, RemoteID: retailer.RetailerId, RemoteNumber: retailer.RetailerNumber}, nil
	}

	if err := s.validate.Struct(retailer); err != nil {
		return RegistrationResult{}, newError(ErrValidation, op, utils.FormatValidationErrors(err), nil)
	}
	mobile, err := utils.NormalizePhoneNumber(retailer.OwnerMobile, s.phoneRegion)
	if err != nil {
		return RegistrationResult{}, newError(ErrValidation, op, "owner_mobile", err)
	}

	payload := map[string]any{
		"business_name":         retailer.BusinessName,
		"owner_name":            retailer.OwnerName,
		"owner_mobile":          mobile,
		"owner_email":           retailer.OwnerEmail,
		"owner_nid":             retailer.OwnerNid,
		"bin":                   retailer.Bin,
		"trade_license_no":      retailer.TradeLicenseNo,
		"address":               retailer.Address,
		"zone_id":               retailer.ZoneRemoteId,
		"vat_commissionrate_id": retailer.CommissionRemoteId,
		"division_id":           retailer.DivisionRemoteId,
		"circle_id":             retailer.CircleRemoteId,
		"service_type_ids":      utils.UniqueSlice(retailer.ServiceTypeIds()),
	}
	doc, err := s.Call(ctx, http.MethodPost, retailerRegistrationPath, payload, nil)
	if err != nil {
		config.LogError(s.logger, moduleName, op, "retail_registration request", retailer.ID, err)
		return RegistrationResult{}, err
	}

	result, regErr := interpretRegistration(op, doc, retailerShape)
	retailer.Response = utils.MarshalOrEmpty(doc)
	if regErr == nil {
		retailer.RetailerId = result.RemoteID
		if result.RemoteNumber != "" {
			retailer.RetailerNumber = result.RemoteNumber
		}
		retailer.OwnerMobile = mobile
		retailer.DocStatus = models.DocStatusSubmitted
	}
	if _, err := s.repo.SaveRetailer(ctx, *retailer); err != nil {
		config.LogError(s.logger, moduleName, op, "save retailer registration", retailer.ID, err)
		return RegistrationResult{}, err
	}
	if regErr != nil {
		config.LogError(s.logger, moduleName, op, "retail_registration rejected", retailer.ID, regErr)
		return RegistrationResult{}, regErr
	}

	s.logger.WithFields(logrus.Fields{
		"module":      moduleName,
		"func":        op,
		"outcome":     result.Outcome,
		"retailer_id": result.RemoteID,
	}).Info("retailer registered")
	return result, nil
}

// RegisterBranch submits a branch of an already registered retailer.
func (s *Service) RegisterBranch(ctx context.Context, id uint) (RegistrationResult, error) {
	const op = "RegisterBranch"
	branch, err := s.repo.GetBranch(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return RegistrationResult{}, newError(ErrValidation, op, fmt.Sprintf("branch registration %d not found", id), err)
		}
		return RegistrationResult{}, err
	}
	if branch.IsRegistered() {
		return RegistrationResult{Outcome: AlreadyRegistered, RemoteID: branch.BranchId, RemoteNumber: branch.BranchNumber}, nil
	}

	if err := s.validate.Struct(branch); err != nil {
		return RegistrationResult{}, newError(ErrValidation, op, utils.FormatValidationErrors(err), nil)
	}
	mobile, err := utils.NormalizePhoneNumber(branch.ContactMobile, s.phoneRegion)
	if err != nil {
		return RegistrationResult{}, newError(ErrValidation, op, "contact_mobile", err)
	}

	payload := map[string]any{
		"retailer_id":    branch.RetailerId,
		"branch_name":    branch.BranchName,
		"contact_person": branch.ContactPerson,
		"contact_mobile": mobile,
		"address":        branch.Address,
		"zone_id":        branch.ZoneRemoteId,
		"division_id":    branch.DivisionRemoteId,
		"circle_id":      branch.CircleRemoteId,
	}
	doc, err := s.Call(ctx, http.MethodPost, branchRegistrationPath, payload, nil)
	if err != nil {
		config.LogError(s.logger, moduleName, op, "retailer_branch_registration request", branch.ID, err)
		return RegistrationResult{}, err
	}

	result, regErr := interpretRegistration(op, doc, branchShape)
	branch.Response = utils.MarshalOrEmpty(doc)
	if regErr == nil {
		branch.BranchId = result.RemoteID
		if result.RemoteNumber != "" {
			branch.BranchNumber = result.RemoteNumber
		}
		branch.ContactMobile = mobile
		branch.DocStatus = models.DocStatusSubmitted
	}
	if _, err := s.repo.SaveBranch(ctx, *branch); err != nil {
		config.LogError(s.logger, moduleName, op, "save branch registration", branch.ID, err)
		return RegistrationResult{}, err
	}
	if regErr != nil {
		config.LogError(s.logger, moduleName, op, "retailer_branch_registration rejected", branch.ID, regErr)
		return RegistrationResult{}, regErr
	}

	s.logger.WithFields(logrus.Fields{
		"module":    moduleName,
		"func":      op,
		"outcome":   result.Outcome,
		"branch_id": result.RemoteID,
	}).Info("branch registered")
	return result, nil
}

// UploadFile sends a supporting document for a retailer. path is a local path
// or a gs://bucket/object URI.
func (s *Service) UploadFile(ctx context.Context, category, path, retailerID string) (Document, error) {
	const op = "UploadFile"
	if category == "" || retailerID == "" {
		return nil, newError(ErrValidation, op, "category and retailer_id are required", nil)
	}
	file, err := s.files.Locate(ctx, path)
	if err != nil {
		if errors.Is(err, utils.ErrUploadNotFound) {
			return nil, newError(ErrValidation, op, "file not found", err)
		}
		return nil, newError(ErrValidation, op, "open file", err)
	}

	doc, err := s.Upload(ctx, uploadFilePath, map[string]string{
		"category":    category,
		"retailer_id": retailerID,
	}, file)
	if err != nil {
		config.LogError(s.logger, moduleName, op, "upload_file request", retailerID, err)
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"module":      moduleName,
		"func":        op,
		"retailer_id": retailerID,
		"category":    category,
		"file":        file.Name,
	}).Info("file uploaded")
	return doc, nil
}
