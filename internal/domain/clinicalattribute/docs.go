package clinicalattribute

import (
	"net/http"

	"github.com/portal/portal/internal/platform/openapi"
	"github.com/portal/portal/pkg/pagination"
)

const docTag = "Clinical Attributes"

// Operations describes the routes mounted by RegisterRoutes, with paths
// relative to the API group prefix.
func Operations(prefix string) []openapi.Operation {
	projection := openapi.QueryParam("projection", "Level of detail of the response",
		openapi.EnumSchema([]string{ProjectionSummary.String(), ProjectionDetailed.String(), ProjectionMeta.String()}, ProjectionSummary.String()))
	pageSize := openapi.QueryParam("pageSize", "Page size of the result list",
		openapi.IntegerSchema(pagination.MinPageSize, pagination.MaxPageSize, pagination.DefaultPageSize))
	pageNumber := openapi.QueryParam("pageNumber", "Page number of the result list",
		openapi.MinIntegerSchema(pagination.MinPageNumber, pagination.DefaultPageNumber))
	sortBy := openapi.QueryParam("sortBy", "Name of the property that the result list is sorted by",
		openapi.EnumSchema(SortByValues(), ""))
	direction := openapi.QueryParam("direction", "Direction of the sort",
		openapi.EnumSchema([]string{DirectionAsc.String(), DirectionDesc.String()}, DirectionAsc.String()))
	studyID := openapi.PathParam("studyId", "Study ID e.g. acc_tcga")

	listResponses := map[int]openapi.Response{
		http.StatusOK: {
			Description: "Clinical attributes, or only the total-count header with projection=META",
			Body:        []ClinicalAttribute{},
			Headers:     map[string]string{pagination.TotalCountHeader: "Number of matching clinical attributes (META only)"},
		},
		http.StatusBadRequest: {Description: "Invalid parameter"},
	}
	studyResponses := map[int]openapi.Response{
		http.StatusOK:         listResponses[http.StatusOK],
		http.StatusBadRequest: listResponses[http.StatusBadRequest],
		http.StatusForbidden:  {Description: "Study is not readable by the caller"},
		http.StatusNotFound:   {Description: "Study does not exist"},
	}

	return []openapi.Operation{
		{
			Method:      http.MethodGet,
			Path:        prefix + "/clinical-attributes",
			OperationID: "getAllClinicalAttributes",
			Summary:     "Get all clinical attributes",
			Tags:        []string{docTag},
			Parameters:  []openapi.Parameter{projection, pageSize, pageNumber, sortBy, direction},
			Responses:   listResponses,
		},
		{
			Method:      http.MethodGet,
			Path:        prefix + "/studies/:studyId/clinical-attributes",
			OperationID: "getAllClinicalAttributesInStudy",
			Summary:     "Get all clinical attributes in the specified study",
			Tags:        []string{docTag},
			Parameters:  []openapi.Parameter{studyID, projection, pageSize, pageNumber, sortBy, direction},
			Responses:   studyResponses,
		},
		{
			Method:      http.MethodGet,
			Path:        prefix + "/studies/:studyId/clinical-attributes/:clinicalAttributeId",
			OperationID: "getClinicalAttributeInStudy",
			Summary:     "Get specified clinical attribute",
			Tags:        []string{docTag},
			Parameters:  []openapi.Parameter{studyID, openapi.PathParam("clinicalAttributeId", "Clinical Attribute ID e.g. CANCER_TYPE")},
			Responses: map[int]openapi.Response{
				http.StatusOK:        {Body: ClinicalAttribute{}},
				http.StatusForbidden: {Description: "Study is not readable by the caller"},
				http.StatusNotFound:  {Description: "Study or clinical attribute does not exist"},
			},
		},
		{
			Method:      http.MethodPost,
			Path:        prefix + "/clinical-attributes/fetch",
			OperationID: "fetchClinicalAttributes",
			Summary:     "Fetch clinical attributes",
			Tags:        []string{docTag},
			Parameters:  []openapi.Parameter{projection},
			RequestBody: []string{},
			Responses: map[int]openapi.Response{
				http.StatusOK:         listResponses[http.StatusOK],
				http.StatusBadRequest: {Description: "Body is not a list of 1 or more study ids"},
				http.StatusForbidden:  {Description: "A study is not readable by the caller"},
			},
		},
		{
			Method:      http.MethodPost,
			Path:        prefix + "/clinical-attributes/counts/fetch",
			OperationID: "getAllClinicalAttributesInStudiesBySampleIdentifiers",
			Summary:     "Get counts of clinical attributes by study ID or sample list ID",
			Tags:        []string{docTag},
			Parameters:  []openapi.Parameter{projection, sortBy, direction},
			RequestBody: ClinicalAttributeFilter{},
			Responses: map[int]openapi.Response{
				http.StatusOK:         {Description: "Clinical attributes with sample counts", Body: []ClinicalAttribute{}},
				http.StatusBadRequest: {Description: "Filter carries neither a sample list nor sample identifiers"},
				http.StatusForbidden:  {Description: "A study is not readable by the caller"},
				http.StatusNotFound:   {Description: "Sample list does not exist"},
			},
		},
	}
}
