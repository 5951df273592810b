// Package route53 implements dns.Provider on AWS Route53.
//
// Route53 groups values into record sets keyed by (name, type) and has no
// per-value identifier, so this provider flattens every set into one record
// per value and encodes the record ID as "name|type|value". Mutations do a
// read-modify-write of the owning set through ChangeResourceRecordSets.
package route53

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/yuriy-kovalchuk/yk-dns-sync/internal/dns"
)

const defaultTTL = 300

func init() {
	dns.Register("route53", func(log logr.Logger, settings map[string]string) (dns.Provider, error) {
		return New(log, settings)
	})
}

// Provider implements dns.Provider for Route53.
type Provider struct {
	client *route53.Client
	log    logr.Logger

	mu       sync.Mutex
	setLocks map[string]*sync.Mutex
}

// setLock returns the mutex serializing mutations of one (zone, name, type)
// record set. Every mutation is a read-modify-write of the whole set, so two
// concurrent changes to the same set would each overwrite the other's value.
func (p *Provider) setLock(zoneID, name, typ string) *sync.Mutex {
	key := zoneID + "|" + name + "|" + typ
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.setLocks == nil {
		p.setLocks = make(map[string]*sync.Mutex)
	}
	l, ok := p.setLocks[key]
	if !ok {
		l = &sync.Mutex{}
		p.setLocks[key] = l
	}
	return l
}

// New creates a Route53 provider from the given settings map.
// Optional settings: region (default us-east-1), access_key_id and
// secret_access_key (default AWS credential chain when absent).
func New(log logr.Logger, settings map[string]string) (*Provider, error) {
	region := settings["region"]
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	accessKey := settings["access_key_id"]
	secretKey := settings["secret_access_key"]
	if (accessKey == "") != (secretKey == "") {
		return nil, fmt.Errorf("route53: settings 'access_key_id' and 'secret_access_key' must be set together")
	}
	if accessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("route53: loading AWS config: %w", err)
	}

	return &Provider{client: route53.NewFromConfig(awsCfg), log: log}, nil
}

// ListZones returns all hosted zones.
func (p *Provider) ListZones(ctx context.Context) ([]dns.Zone, error) {
	var zones []dns.Zone
	var marker *string
	for {
		result, err := p.client.ListHostedZones(ctx, &route53.ListHostedZonesInput{Marker: marker})
		if err != nil {
			return nil, fmt.Errorf("route53: listing hosted zones: %w", err)
		}
		for _, z := range result.HostedZones {
			zones = append(zones, dns.Zone{
				ID:   extractZoneID(*z.Id),
				Name: dns.NormalizeRecordName(*z.Name),
			})
		}
		if !result.IsTruncated {
			break
		}
		marker = result.NextMarker
	}
	p.log.V(1).Info("listed hosted zones", "count", len(zones))
	return zones, nil
}

// ListRecords returns the zone's records, one entry per record-set value.
// SOA and apex NS sets are system-managed on Route53 and are filtered out so
// reconciliation never proposes touching them.
func (p *Provider) ListRecords(ctx context.Context, zoneID string) ([]dns.Record, error) {
	zoneName, err := p.zoneName(ctx, zoneID)
	if err != nil {
		return nil, err
	}

	var records []dns.Record
	var nextName *string
	var nextType types.RRType
	for {
		input := &route53.ListResourceRecordSetsInput{
			HostedZoneId: aws.String(zoneID),
		}
		if nextName != nil {
			input.StartRecordName = nextName
			input.StartRecordType = nextType
		}

		result, err := p.client.ListResourceRecordSets(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("route53: listing record sets: %w", err)
		}

		for _, rrs := range result.ResourceRecordSets {
			name := dns.NormalizeRecordName(*rrs.Name)
			typ := string(rrs.Type)
			if typ == "SOA" || (typ == "NS" && name == zoneName) {
				continue
			}
			var ttl *int
			if rrs.TTL != nil {
				v := int(*rrs.TTL)
				ttl = &v
			}
			for _, rr := range rrs.ResourceRecords {
				value, priority := splitPriority(typ, *rr.Value)
				records = append(records, dns.Record{
					ID:       recordID(name, typ, *rr.Value),
					Name:     name,
					Type:     typ,
					Value:    value,
					TTL:      ttl,
					Priority: priority,
				})
			}
		}

		if !result.IsTruncated {
			break
		}
		nextName = result.NextRecordName
		nextType = result.NextRecordType
	}
	return records, nil
}

// CreateZone creates a hosted zone.
func (p *Provider) CreateZone(ctx context.Context, name string) (dns.Zone, error) {
	p.log.Info("creating hosted zone", "zone", name)
	result, err := p.client.CreateHostedZone(ctx, &route53.CreateHostedZoneInput{
		Name:            aws.String(name),
		CallerReference: aws.String(uuid.NewString()),
	})
	if err != nil {
		return dns.Zone{}, fmt.Errorf("route53: creating hosted zone %q: %w", name, err)
	}
	return dns.Zone{
		ID:   extractZoneID(*result.HostedZone.Id),
		Name: dns.NormalizeRecordName(*result.HostedZone.Name),
	}, nil
}

// CreateRecord adds a value to the (name, type) record set, creating the set
// when absent.
func (p *Provider) CreateRecord(ctx context.Context, zoneID string, record dns.Record) (dns.Record, error) {
	if record.Proxied != nil {
		return dns.Record{}, fmt.Errorf("route53: record %s %s: proxied is not supported by this provider", record.Type, record.Name)
	}
	wire := wireValue(record)

	lock := p.setLock(zoneID, record.Name, record.Type)
	lock.Lock()
	defer lock.Unlock()

	set, err := p.findSet(ctx, zoneID, record.Name, record.Type)
	if err != nil {
		return dns.Record{}, err
	}
	values := set.values
	for _, v := range values {
		if v == wire {
			return dns.Record{}, fmt.Errorf("route53: record %s %s value %q already exists", record.Type, record.Name, record.Value)
		}
	}
	values = append(values, wire)

	if err := p.upsertSet(ctx, zoneID, record.Name, record.Type, pickTTL(record.TTL, set.ttl), values); err != nil {
		return dns.Record{}, err
	}
	record.ID = recordID(record.Name, record.Type, wire)
	p.log.Info("created record", "name", record.Name, "type", record.Type)
	return record, nil
}

// UpdateRecord replaces one value of a record set with the desired record.
func (p *Provider) UpdateRecord(ctx context.Context, zoneID, recordID string, record dns.Record) error {
	if record.Proxied != nil {
		return fmt.Errorf("route53: record %s %s: proxied is not supported by this provider", record.Type, record.Name)
	}
	name, typ, oldValue, err := parseRecordID(recordID)
	if err != nil {
		return err
	}

	lock := p.setLock(zoneID, name, typ)
	lock.Lock()
	defer lock.Unlock()

	set, err := p.findSet(ctx, zoneID, name, typ)
	if err != nil {
		return err
	}
	if len(set.values) == 0 {
		return fmt.Errorf("route53: record set %s %s not found", typ, name)
	}

	wire := wireValue(record)
	values := make([]string, 0, len(set.values))
	replaced := false
	for _, v := range set.values {
		if !replaced && v == oldValue {
			replaced = true
			v = wire
		}
		values = append(values, v)
	}
	if !replaced {
		return fmt.Errorf("route53: value %q not found in record set %s %s", oldValue, typ, name)
	}

	err = p.upsertSet(ctx, zoneID, record.Name, record.Type, pickTTL(record.TTL, set.ttl), values)
	if err == nil {
		p.log.Info("updated record", "name", record.Name, "type", record.Type)
	}
	return err
}

// DeleteRecord removes one value from its record set, deleting the set when
// the last value goes.
func (p *Provider) DeleteRecord(ctx context.Context, zoneID, recordID string) error {
	name, typ, oldValue, err := parseRecordID(recordID)
	if err != nil {
		return err
	}

	lock := p.setLock(zoneID, name, typ)
	lock.Lock()
	defer lock.Unlock()

	set, err := p.findSet(ctx, zoneID, name, typ)
	if err != nil {
		return err
	}
	values := make([]string, 0, len(set.values))
	for _, v := range set.values {
		if v != oldValue {
			values = append(values, v)
		}
	}
	if len(values) == len(set.values) {
		return fmt.Errorf("route53: value %q not found in record set %s %s", oldValue, typ, name)
	}

	if len(values) == 0 {
		err = p.changeSet(ctx, zoneID, types.ChangeActionDelete, name, typ, set.ttl, set.values)
	} else {
		err = p.upsertSet(ctx, zoneID, name, typ, set.ttl, values)
	}
	if err == nil {
		p.log.Info("deleted record", "name", name, "type", typ)
	}
	return err
}

// recordSet is the current remote state of one (name, type) set.
type recordSet struct {
	ttl    int
	values []string
}

func (p *Provider) findSet(ctx context.Context, zoneID, name, typ string) (recordSet, error) {
	result, err := p.client.ListResourceRecordSets(ctx, &route53.ListResourceRecordSetsInput{
		HostedZoneId:    aws.String(zoneID),
		StartRecordName: aws.String(name),
		StartRecordType: types.RRType(typ),
		MaxItems:        aws.Int32(1),
	})
	if err != nil {
		return recordSet{}, fmt.Errorf("route53: looking up record set %s %s: %w", typ, name, err)
	}

	set := recordSet{ttl: defaultTTL}
	for _, rrs := range result.ResourceRecordSets {
		if dns.NormalizeRecordName(*rrs.Name) != name || string(rrs.Type) != typ {
			continue
		}
		if rrs.TTL != nil {
			set.ttl = int(*rrs.TTL)
		}
		for _, rr := range rrs.ResourceRecords {
			set.values = append(set.values, *rr.Value)
		}
	}
	return set, nil
}

func (p *Provider) upsertSet(ctx context.Context, zoneID, name, typ string, ttl int, values []string) error {
	return p.changeSet(ctx, zoneID, types.ChangeActionUpsert, name, typ, ttl, values)
}

func (p *Provider) changeSet(ctx context.Context, zoneID string, action types.ChangeAction, name, typ string, ttl int, values []string) error {
	resourceRecords := make([]types.ResourceRecord, 0, len(values))
	for _, v := range values {
		resourceRecords = append(resourceRecords, types.ResourceRecord{Value: aws.String(v)})
	}

	_, err := p.client.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(zoneID),
		ChangeBatch: &types.ChangeBatch{
			Comment: aws.String("Changed via yk-dns-sync"),
			Changes: []types.Change{
				{
					Action: action,
					ResourceRecordSet: &types.ResourceRecordSet{
						Name:            aws.String(name),
						Type:            types.RRType(typ),
						TTL:             aws.Int64(int64(ttl)),
						ResourceRecords: resourceRecords,
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("route53: %s %s %s: %w", strings.ToLower(string(action)), typ, name, err)
	}
	return nil
}

func (p *Provider) zoneName(ctx context.Context, zoneID string) (string, error) {
	result, err := p.client.GetHostedZone(ctx, &route53.GetHostedZoneInput{Id: aws.String(zoneID)})
	if err != nil {
		return "", fmt.Errorf("route53: getting hosted zone %s: %w", zoneID, err)
	}
	return dns.NormalizeRecordName(*result.HostedZone.Name), nil
}

// wireValue renders a record's value in Route53 wire form. MX and SRV carry
// the priority as a leading integer inside the value.
func wireValue(r dns.Record) string {
	if r.Priority != nil && (r.Type == "MX" || r.Type == "SRV") {
		return fmt.Sprintf("%d %s", *r.Priority, r.Value)
	}
	return r.Value
}

// splitPriority undoes wireValue for listed records.
func splitPriority(typ, wire string) (value string, priority *int) {
	if typ != "MX" && typ != "SRV" {
		return wire, nil
	}
	head, rest, found := strings.Cut(wire, " ")
	if !found {
		return wire, nil
	}
	n, err := strconv.Atoi(head)
	if err != nil {
		return wire, nil
	}
	return rest, &n
}

func recordID(name, typ, wire string) string {
	return name + "|" + typ + "|" + wire
}

func parseRecordID(id string) (name, typ, wire string, err error) {
	parts := strings.SplitN(id, "|", 3)
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("route53: malformed record id %q", id)
	}
	return parts[0], parts[1], parts[2], nil
}

// pickTTL chooses the TTL for a set write: the desired value when declared,
// otherwise the set's existing TTL, otherwise the provider default.
func pickTTL(desired *int, existing int) int {
	if desired != nil {
		return *desired
	}
	if existing > 0 {
		return existing
	}
	return defaultTTL
}

func extractZoneID(fullID string) string {
	parts := strings.Split(fullID, "/")
	return parts[len(parts)-1]
}
