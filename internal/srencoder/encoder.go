// Package srencoder encapsulates a transcription result as a DICOM
// Enhanced SR object carrying the patient/study context of the source
// dictation file.
package srencoder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"dictascribe/internal/transcriber"
)

// Encoder produces an encoded structured-report file from a transcription
// result and the original dictation file. Failure is reported via error;
// the orchestrator decides what it means for study status.
type Encoder interface {
	Encode(ctx context.Context, res transcriber.Result, sourcePath string) (string, error)
}

const (
	enhancedSRClassUID      = "1.2.840.10008.5.1.4.1.1.88.22"
	explicitVRLittleEndian  = "1.2.840.10008.1.2.1"
	documentTitleCode       = "18748-4" // LOINC: Diagnostic imaging report
	documentTitleScheme     = "LN"
	documentTitleMeaning    = "AI-Generated Dictation Transcription Report"
	srSeriesNumber          = 99
	srSeriesDescription     = "AI Dictation Transcription SR"
	srManufacturer          = "dictascribe"
	srManufacturerModelName = "AI Transcription SR Generator"
	srSoftwareVersion       = "1.0.0"
)

// EnhancedSR writes Enhanced SR files into a configured output folder.
type EnhancedSR struct {
	outputFolder string
	log          *logrus.Entry
}

func NewEnhancedSR(outputFolder string, log *logrus.Entry) *EnhancedSR {
	return &EnhancedSR{outputFolder: outputFolder, log: log}
}

// Encode reads patient/study context from sourcePath and writes
// <basename>_SR.dcm under the output folder, returning the written path.
func (e *EnhancedSR) Encode(_ context.Context, res transcriber.Result, sourcePath string) (string, error) {
	source, err := dicom.ParseFile(sourcePath, nil)
	if err != nil {
		return "", fmt.Errorf("read source dicom %s: %w", sourcePath, err)
	}

	if err := os.MkdirAll(e.outputFolder, 0o755); err != nil {
		return "", fmt.Errorf("create sr output folder: %w", err)
	}
	srPath := filepath.Join(e.outputFolder, srFileNameFor(sourcePath))

	ds, err := e.buildDataset(source, res)
	if err != nil {
		return "", err
	}

	f, err := os.Create(srPath)
	if err != nil {
		return "", fmt.Errorf("create sr file: %w", err)
	}
	defer f.Close()

	if err := dicom.Write(f, ds, dicom.SkipVRVerification()); err != nil {
		return "", fmt.Errorf("write sr file %s: %w", srPath, err)
	}

	e.log.WithField("sr_path", srPath).Info("enhanced SR written")
	return srPath, nil
}

func (e *EnhancedSR) buildDataset(source dicom.Dataset, res transcriber.Result) (dicom.Dataset, error) {
	now := time.Now()
	sopInstanceUID := NewUID()

	b := &datasetBuilder{}

	// File meta
	b.add(tag.MediaStorageSOPClassUID, []string{enhancedSRClassUID})
	b.add(tag.MediaStorageSOPInstanceUID, []string{sopInstanceUID})
	b.add(tag.TransferSyntaxUID, []string{explicitVRLittleEndian})

	b.add(tag.SOPClassUID, []string{enhancedSRClassUID})
	b.add(tag.SOPInstanceUID, []string{sopInstanceUID})
	b.add(tag.StudyDate, []string{stringOr(source, tag.StudyDate, now.Format("20060102"))})
	b.add(tag.ContentDate, []string{now.Format("20060102")})
	b.add(tag.StudyTime, []string{stringOr(source, tag.StudyTime, now.Format("150405"))})
	b.add(tag.ContentTime, []string{now.Format("150405")})
	b.add(tag.AccessionNumber, []string{stringOr(source, tag.AccessionNumber, "")})
	b.add(tag.Modality, []string{"SR"})
	b.add(tag.Manufacturer, []string{srManufacturer})
	b.add(tag.SeriesDescription, []string{srSeriesDescription})
	b.add(tag.ManufacturerModelName, []string{srManufacturerModelName})

	b.add(tag.PatientName, []string{stringOr(source, tag.PatientName, "Unknown")})
	b.add(tag.PatientID, []string{stringOr(source, tag.PatientID, "Unknown")})
	b.add(tag.PatientBirthDate, []string{stringOr(source, tag.PatientBirthDate, "")})
	b.add(tag.PatientSex, []string{stringOr(source, tag.PatientSex, "O")})

	b.add(tag.SoftwareVersions, []string{srSoftwareVersion})

	b.add(tag.StudyInstanceUID, []string{stringOr(source, tag.StudyInstanceUID, NewUID())})
	b.add(tag.SeriesInstanceUID, []string{NewUID()})
	b.add(tag.SeriesNumber, []int{srSeriesNumber})
	b.add(tag.InstanceNumber, []int{1})

	b.add(tag.ValueType, []string{"CONTAINER"})
	b.addSequence(tag.ConceptNameCodeSequence, [][]*dicom.Element{
		codeItem(documentTitleCode, documentTitleScheme, documentTitleMeaning),
	})
	b.add(tag.ContinuityOfContent, []string{"SEPARATE"})
	b.add(tag.CompletionFlag, []string{"COMPLETE"})
	b.add(tag.VerificationFlag, []string{"UNVERIFIED"})
	b.addSequence(tag.ContentSequence, [][]*dicom.Element{
		reportContainer(res),
	})

	if b.err != nil {
		return dicom.Dataset{}, fmt.Errorf("build sr dataset: %w", b.err)
	}
	return dicom.Dataset{Elements: b.elems}, nil
}

// reportContainer is the titled root section: a CONTAINER holding one
// TEXT item per report section (Finding, Impression).
func reportContainer(res transcriber.Result) []*dicom.Element {
	b := &datasetBuilder{}
	b.add(tag.RelationshipType, []string{"CONTAINS"})
	b.add(tag.ValueType, []string{"CONTAINER"})
	b.addSequence(tag.ConceptNameCodeSequence, [][]*dicom.Element{
		codeItem("111058", "DCM", "Report"),
	})
	b.add(tag.ContinuityOfContent, []string{"SEPARATE"})
	b.addSequence(tag.ContentSequence, [][]*dicom.Element{
		textItem("111027", "Finding", res.Reading),
		textItem("111030", "Impression", res.Conclusion),
	})
	return b.elems
}

func textItem(code, meaning, value string) []*dicom.Element {
	b := &datasetBuilder{}
	b.add(tag.RelationshipType, []string{"CONTAINS"})
	b.add(tag.ValueType, []string{"TEXT"})
	b.addSequence(tag.ConceptNameCodeSequence, [][]*dicom.Element{
		codeItem(code, "DCM", meaning),
	})
	b.add(tag.TextValue, []string{strings.TrimSpace(value)})
	return b.elems
}

func codeItem(value, scheme, meaning string) []*dicom.Element {
	b := &datasetBuilder{}
	b.add(tag.CodeValue, []string{value})
	b.add(tag.CodingSchemeDesignator, []string{scheme})
	b.add(tag.CodeMeaning, []string{meaning})
	return b.elems
}

// datasetBuilder accumulates elements, capturing the first constructor
// error instead of threading err through every call site.
type datasetBuilder struct {
	elems []*dicom.Element
	err   error
}

func (b *datasetBuilder) add(t tag.Tag, value interface{}) {
	if b.err != nil {
		return
	}
	el, err := dicom.NewElement(t, value)
	if err != nil {
		b.err = fmt.Errorf("element %v: %w", t, err)
		return
	}
	b.elems = append(b.elems, el)
}

func (b *datasetBuilder) addSequence(t tag.Tag, items [][]*dicom.Element) {
	b.add(t, items)
}

// srFileNameFor derives the output filename from the source path.
func srFileNameFor(sourcePath string) string {
	base := sourcePath
	if i := strings.LastIndexAny(base, `\/`); i != -1 {
		base = base[i+1:]
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return base + "_SR.dcm"
}

func stringOr(ds dicom.Dataset, t tag.Tag, fallback string) string {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return fallback
	}
	if vals, ok := el.Value.GetValue().([]string); ok && len(vals) > 0 && vals[0] != "" {
		return vals[0]
	}
	return fallback
}
