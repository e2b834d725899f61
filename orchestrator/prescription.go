package orchestrator

import (
	"time"

	"github.com/pharmaflow-project/pharmacy-multi-agent/catalog"
	"github.com/pharmaflow-project/pharmacy-multi-agent/session"
	"github.com/pharmaflow-project/pharmacy-multi-agent/types"
)

// prescriptionValidity is how long a freshly verified upload stays on file.
const prescriptionValidity = 6 * 30 * 24 * time.Hour

// HandleUpload resumes an order paused on the prescription gate. The
// pending snapshot converts into a live preview in one session-atomic
// step, so a duplicate upload callback finds the preview instead of the
// pending state and simply returns it again.
func (o *Orchestrator) HandleUpload(sessionID string, verified bool) *types.ChatResponse {
	var (
		preview  *types.OrderPreview
		existing *types.OrderPreview
		pending  *types.PendingPrescription
	)

	_ = o.store.WithSession(sessionID, func(sess *session.Session) error {
		pending = sess.Pending()
		if pending == nil {
			existing = sess.Preview()
			return nil
		}

		sess.MarkUploaded(verified)
		if !verified {
			return nil
		}

		preview = o.buildPreview(pending.OrderInfo, pending.PatientID, pending.Evidence)
		sess.SetPreview(preview)
		sess.ClearPending()
		return nil
	})

	switch {
	case pending == nil && existing != nil:
		return &types.ChatResponse{
			Response:    "Your prescription is already on file. " + previewText(existing),
			UICardType:  types.UICardOrderPreview,
			Preview:     existing,
			FinalAction: types.ActionPreviewCreated,
		}

	case pending == nil:
		err := types.NewOrchestrationError(types.ErrCodeNothingToResume,
			"no paused order is waiting for a prescription").WithSession(sessionID)
		resp := failureResponse(err, nil)
		resp.Response = "I don't have an order waiting for a prescription in this session."
		resp.Error.Recoverable = false
		return resp

	case !verified:
		return &types.ChatResponse{
			Response:   "That prescription could not be verified. Please upload a valid prescription to continue your order.",
			UICardType: types.UICardPrescriptionUpload,
		}

	default:
		o.log.WithSession(sessionID).Infof("Prescription verified, order resumed as preview %s", preview.PreviewID)
		if preview.PatientID != "" {
			o.recordPrescriptions(preview, pending)
		}
		return &types.ChatResponse{
			Response:    "Prescription verified. " + previewText(preview),
			UICardType:  types.UICardOrderPreview,
			Preview:     preview,
			FinalAction: types.ActionPreviewCreated,
		}
	}
}

// recordPrescriptions files the verified upload so future orders for the
// same medicines skip the gate.
func (o *Orchestrator) recordPrescriptions(preview *types.OrderPreview, pending *types.PendingPrescription) {
	now := time.Now()
	for _, item := range pending.OrderInfo.Items {
		if !item.PrescriptionRequired {
			continue
		}
		o.catalog.AddPrescription(catalog.PrescriptionRecord{
			PatientID:    preview.PatientID,
			MedicineName: item.MedicineName,
			Strength:     item.Strength,
			IssuedAt:     now,
			ExpiresAt:    now.Add(prescriptionValidity),
		})
	}
}
