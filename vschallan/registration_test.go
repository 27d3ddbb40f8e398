package vschallan

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/invento-software-limited/Smart-Vat-Challan/models"
	"github.com/invento-software-limited/Smart-Vat-Challan/store/memory"
)

func seedRetailer(t *testing.T, repo *memory.Store) *models.RetailerRegistration {
	t.Helper()
	r, err := repo.SaveRetailer(context.Background(), models.RetailerRegistration{
		BusinessName:       "Karim Traders",
		OwnerName:          "Karim",
		OwnerMobile:        "01712345678",
		OwnerEmail:         "karim@example.com",
		Address:            "Road 1, Dhaka",
		ZoneRemoteId:       "Z1",
		CommissionRemoteId: "R1",
		DivisionRemoteId:   "D1",
		CircleRemoteId:     "C1",
		ServiceTypes: []models.RetailerServiceType{
			{ServiceTypeRemoteId: "S1"},
			{ServiceTypeRemoteId: "S2"},
			{ServiceTypeRemoteId: "S1"},
		},
		DocStatus: models.DocStatusDraft,
	})
	if err != nil {
		t.Fatalf("SaveRetailer error: %v", err)
	}
	return r
}

func TestRegisterRetailer_Outcomes(t *testing.T) {
	cases := []struct {
		name        string
		reply       http.HandlerFunc
		wantOutcome RegistrationOutcome
		wantID      string
		wantErr     error
	}{
		{
			name:        "registered",
			reply:       jsonReply(http.StatusOK, `{"status_code":"200","data":{"retailer_id":"RT-1","retailer_number":"N-1"}}`),
			wantOutcome: Registered,
			wantID:      "RT-1",
		},
		{
			name:        "already exists",
			reply:       jsonReply(http.StatusOK, `{"status_code":"200","data":{"retailer_details":{"id":"RT-OLD","retailer_number":"N-OLD"}}}`),
			wantOutcome: AlreadyExists,
			wantID:      "RT-OLD",
		},
		{
			name:    "rejected",
			reply:   jsonReply(http.StatusOK, `{"success":"0","error":"BIN already used"}`),
			wantErr: ErrRegistration,
		},
		{
			name:    "unexpected shape",
			reply:   jsonReply(http.StatusOK, `{"message":"hello"}`),
			wantErr: ErrUnexpectedResponse,
		},
		{
			name:    "ok without ids",
			reply:   xmlReply(http.StatusOK, `<r><status_code>200</status_code><data><note>queued</note></data></r>`),
			wantErr: ErrRegistration,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakeAuthority(t)
			f.handle(retailerRegistrationPath, tc.reply)
			svc, repo := newTestService(t, f, models.SyncScheduleDaily)
			retailer := seedRetailer(t, repo)

			result, err := svc.RegisterRetailer(context.Background(), retailer.ID)
			stored, _ := repo.GetRetailer(context.Background(), retailer.ID)
			if stored.Response == "" {
				t.Fatalf("response must be stored")
			}
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				if stored.IsRegistered() || stored.DocStatus != models.DocStatusDraft {
					t.Fatalf("failed registration must not mark the record: %+v", stored)
				}
				return
			}
			if err != nil {
				t.Fatalf("RegisterRetailer error: %v", err)
			}
			if result.Outcome != tc.wantOutcome || result.RemoteID != tc.wantID {
				t.Fatalf("unexpected result %+v", result)
			}
			if stored.RetailerId != tc.wantID || stored.DocStatus != models.DocStatusSubmitted {
				t.Fatalf("record not updated: %+v", stored)
			}
			if stored.OwnerMobile != "+8801712345678" {
				t.Fatalf("mobile not normalized: %q", stored.OwnerMobile)
			}
		})
	}
}

func TestRegisterRetailer_SendsUniqueServiceTypes(t *testing.T) {
	f := newFakeAuthority(t)
	f.handle(retailerRegistrationPath, jsonReply(http.StatusOK, `{"status_code":"200","data":{"retailer_id":"RT-1","retailer_number":"N-1"}}`))
	svc, repo := newTestService(t, f, models.SyncScheduleDaily)
	retailer := seedRetailer(t, repo)

	if _, err := svc.RegisterRetailer(context.Background(), retailer.ID); err != nil {
		t.Fatalf("RegisterRetailer error: %v", err)
	}
	body := f.lastBody(retailerRegistrationPath)
	if !strings.Contains(body, `"service_type_ids":["S1","S2"]`) {
		t.Fatalf("unexpected service types in %s", body)
	}
	if !strings.Contains(body, `"vat_commissionrate_id":"R1"`) {
		t.Fatalf("commission rate missing in %s", body)
	}
}

func TestRegisterRetailer_AlreadyRegisteredSkipsNetwork(t *testing.T) {
	f := newFakeAuthority(t)
	svc, repo := newTestService(t, f, models.SyncScheduleDaily)
	retailer := seedRetailer(t, repo)
	retailer.RetailerId = "RT-9"
	if _, err := repo.SaveRetailer(context.Background(), *retailer); err != nil {
		t.Fatalf("SaveRetailer error: %v", err)
	}

	result, err := svc.RegisterRetailer(context.Background(), retailer.ID)
	if err != nil {
		t.Fatalf("RegisterRetailer error: %v", err)
	}
	if result.Outcome != AlreadyRegistered || result.RemoteID != "RT-9" {
		t.Fatalf("unexpected result %+v", result)
	}
	if f.count(retailerRegistrationPath) != 0 || f.count(authenticatePath) != 0 {
		t.Fatalf("no request expected")
	}
}

func TestRegisterRetailer_InvalidRecord(t *testing.T) {
	f := newFakeAuthority(t)
	svc, repo := newTestService(t, f, models.SyncScheduleDaily)
	r, err := repo.SaveRetailer(context.Background(), models.RetailerRegistration{BusinessName: "Only a name"})
	if err != nil {
		t.Fatalf("SaveRetailer error: %v", err)
	}

	_, err = svc.RegisterRetailer(context.Background(), r.ID)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if f.count(retailerRegistrationPath) != 0 {
		t.Fatalf("invalid record must not be sent")
	}
}

func TestRegisterBranch_PersistsBranchIds(t *testing.T) {
	f := newFakeAuthority(t)
	f.handle(branchRegistrationPath, jsonReply(http.StatusOK, `{"status_code":"200","data":{"branch_details":{"branch_id":"B-7","branch_number":"BN-7"}}}`))
	svc, repo := newTestService(t, f, models.SyncScheduleDaily)
	branch, err := repo.SaveBranch(context.Background(), models.RetailerBranchRegistration{
		RetailerId:     "RT-1",
		BranchName:     "Banani",
		ContactMobile:  "01812345678",
		Address:        "Road 11, Banani",
		CircleRemoteId: "C1",
	})
	if err != nil {
		t.Fatalf("SaveBranch error: %v", err)
	}

	result, err := svc.RegisterBranch(context.Background(), branch.ID)
	if err != nil {
		t.Fatalf("RegisterBranch error: %v", err)
	}
	if result.Outcome != AlreadyExists || result.RemoteID != "B-7" || result.RemoteNumber != "BN-7" {
		t.Fatalf("unexpected result %+v", result)
	}
	stored, _ := repo.GetBranch(context.Background(), branch.ID)
	if stored.BranchId != "B-7" || stored.BranchNumber != "BN-7" || stored.DocStatus != models.DocStatusSubmitted {
		t.Fatalf("branch not updated: %+v", stored)
	}
}
