package azureml

import (
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/machinelearning/armmachinelearning/v4"

	"github.com/aravindh-murugesan/endpointsentry-go/internal/cloud"
)

// endpointFromSDK flattens the ARM representation into cloud.Endpoint.
func endpointFromSDK(e *armmachinelearning.OnlineEndpoint) cloud.Endpoint {
	if e == nil {
		return cloud.Endpoint{}
	}

	out := cloud.Endpoint{
		ID:       deref(e.ID),
		Name:     deref(e.Name),
		Location: deref(e.Location),
		Tags:     fromPtrMap(e.Tags),
	}

	if e.SystemData != nil && e.SystemData.CreatedAt != nil {
		out.CreatedAt = *e.SystemData.CreatedAt
	}

	if p := e.Properties; p != nil {
		out.ScoringURI = deref(p.ScoringURI)
		out.SwaggerURI = deref(p.SwaggerURI)
		if p.AuthMode != nil {
			out.AuthMode = authModeFromSDK(*p.AuthMode)
		}
		if p.ProvisioningState != nil {
			out.ProvisioningState = string(*p.ProvisioningState)
		}
		if len(p.Traffic) > 0 {
			out.Traffic = make(map[string]int32, len(p.Traffic))
			for k, v := range p.Traffic {
				if v != nil {
					out.Traffic[k] = *v
				}
			}
		}
	}

	return out
}

// deploymentFromSDK flattens the ARM representation into cloud.Deployment.
func deploymentFromSDK(endpointName string, d *armmachinelearning.OnlineDeployment) cloud.Deployment {
	if d == nil {
		return cloud.Deployment{}
	}

	out := cloud.Deployment{
		ID:           deref(d.ID),
		Name:         deref(d.Name),
		EndpointName: endpointName,
		Tags:         fromPtrMap(d.Tags),
	}

	if d.SKU != nil && d.SKU.Capacity != nil {
		out.InstanceCount = *d.SKU.Capacity
	}

	if d.Properties != nil {
		if p := d.Properties.GetOnlineDeploymentProperties(); p != nil {
			out.Model = deref(p.Model)
			out.InstanceType = deref(p.InstanceType)
			if p.ProvisioningState != nil {
				out.ProvisioningState = string(*p.ProvisioningState)
			}
		}
	}

	return out
}

func authModeToSDK(mode string) armmachinelearning.EndpointAuthMode {
	if mode == cloud.AuthModeAMLToken {
		return armmachinelearning.EndpointAuthModeAMLToken
	}
	return armmachinelearning.EndpointAuthModeKey
}

func authModeFromSDK(mode armmachinelearning.EndpointAuthMode) string {
	switch mode {
	case armmachinelearning.EndpointAuthModeAMLToken:
		return cloud.AuthModeAMLToken
	case armmachinelearning.EndpointAuthModeKey:
		return cloud.AuthModeKey
	default:
		return string(mode)
	}
}

func toPtrMap(in map[string]string) map[string]*string {
	if in == nil {
		return nil
	}
	out := make(map[string]*string, len(in))
	for k, v := range in {
		out[k] = &v
	}
	return out
}

func fromPtrMap(in map[string]*string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = deref(v)
	}
	return out
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
