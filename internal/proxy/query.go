package proxy

import (
	"net/url"
	"strconv"

	apperrors "szenai/internal/errors"
	"szenai/internal/validation"
	"szenai/pkg/waha/types"
)

func invalidQuery(name, value, reason string) error {
	return apperrors.NewValidationError(name, value, reason)
}

func queryInt(q url.Values, name string) (int, error) {
	v := q.Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, invalidQuery(name, v, "must be an integer")
	}
	return n, nil
}

func queryInt64(q url.Values, name string) (*int64, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, invalidQuery(name, v, "must be an integer")
	}
	return &n, nil
}

func queryBool(q url.Values, name string) (*bool, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, invalidQuery(name, v, "must be true or false")
	}
	return &b, nil
}

func parsePage(q url.Values) (limit, offset int, err error) {
	if limit, err = queryInt(q, "limit"); err != nil {
		return 0, 0, err
	}
	if offset, err = queryInt(q, "offset"); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func parseListChats(q url.Values) (types.ListChatsParams, error) {
	limit, offset, err := parsePage(q)
	if err != nil {
		return types.ListChatsParams{}, err
	}
	params := types.ListChatsParams{
		Limit:     limit,
		Offset:    offset,
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	}
	return params, validation.ValidateStruct(params)
}

func parseOverview(q url.Values) (types.OverviewParams, error) {
	limit, offset, err := parsePage(q)
	if err != nil {
		return types.OverviewParams{}, err
	}
	params := types.OverviewParams{Limit: limit, Offset: offset}
	return params, validation.ValidateStruct(params)
}

func parseListMessages(q url.Values) (types.ListMessagesParams, error) {
	var (
		params types.ListMessagesParams
		err    error
	)
	if params.Limit, params.Offset, err = parsePage(q); err != nil {
		return params, err
	}
	if params.DownloadMedia, err = queryBool(q, "downloadMedia"); err != nil {
		return params, err
	}
	if params.Filter.TimestampLTE, err = queryInt64(q, "filter.timestamp.lte"); err != nil {
		return params, err
	}
	if params.Filter.TimestampGTE, err = queryInt64(q, "filter.timestamp.gte"); err != nil {
		return params, err
	}
	if params.Filter.FromMe, err = queryBool(q, "filter.fromMe"); err != nil {
		return params, err
	}
	if v := q.Get("filter.ack"); v != "" {
		ack, err := types.ParseAck(v)
		if err != nil {
			return params, invalidQuery("filter.ack", v, "unknown ack level")
		}
		params.Filter.Ack = &ack
	}
	return params, validation.ValidateStruct(params)
}
